package db

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go_styletransfer/core"
)

func sampleRecord(id string, style int, status core.TransferStatus, at time.Time) core.TransferRecord {
	rec := core.TransferRecord{
		ID:        id,
		Style:     style,
		StyleName: fmt.Sprintf("style%d", style),
		Backend:   "reference",
		Width:     640,
		Height:    480,
		Duration:  12500 * time.Microsecond,
		Status:    status,
		CreatedAt: at,
	}
	if status == core.TransferFailed {
		rec.Error = "styletransfer: inference failed"
		rec.Duration = 0
	}
	return rec
}

func TestRepository_InsertAndQuery(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []core.TransferRecord{
		sampleRecord("req-1", 0, core.TransferSucceeded, base),
		sampleRecord("req-2", 1, core.TransferFailed, base.Add(time.Second)),
		sampleRecord("req-3", 0, core.TransferSucceeded, base.Add(2*time.Second)),
	}
	records[2].UseGPU = true
	for _, rec := range records {
		id, err := repo.InsertTransfer(ctx, rec)
		if err != nil {
			t.Fatalf("InsertTransfer(%s) error = %v", rec.ID, err)
		}
		if id <= 0 {
			t.Errorf("InsertTransfer(%s) id = %d", rec.ID, id)
		}
	}

	count, err := repo.CountTransfers(ctx)
	if err != nil || count != 3 {
		t.Fatalf("CountTransfers() = %d, %v", count, err)
	}

	recent, err := repo.RecentTransfers(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTransfers() error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "req-3" || recent[1].ID != "req-2" {
		t.Fatalf("RecentTransfers() order = %+v", recent)
	}
	if !recent[0].UseGPU || recent[0].Duration != 12500*time.Microsecond || !recent[0].CreatedAt.Equal(base.Add(2*time.Second)) {
		t.Errorf("round trip = %+v", recent[0].TransferRecord)
	}
	if recent[1].Status != core.TransferFailed || recent[1].Error == "" {
		t.Errorf("failed entry = %+v", recent[1].TransferRecord)
	}

	got, err := repo.TransferByRequestID(ctx, "req-1")
	if err != nil {
		t.Fatalf("TransferByRequestID() error = %v", err)
	}
	if got.StyleName != "style0" || got.Width != 640 || got.Height != 480 || got.Backend != "reference" {
		t.Errorf("TransferByRequestID() = %+v", got.TransferRecord)
	}
	if _, err := repo.TransferByRequestID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Request ids are unique
	if _, err := repo.InsertTransfer(ctx, records[0]); err == nil {
		t.Error("expected duplicate request id to fail")
	}
}

func TestRepository_SummaryByStyle(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil, nil)
	ctx := context.Background()
	now := time.Now()

	inserts := []core.TransferRecord{
		sampleRecord("a", 2, core.TransferSucceeded, now),
		sampleRecord("b", 2, core.TransferSucceeded, now),
		sampleRecord("c", 2, core.TransferFailed, now),
		sampleRecord("d", 0, core.TransferSucceeded, now),
	}
	for _, rec := range inserts {
		if _, err := repo.InsertTransfer(ctx, rec); err != nil {
			t.Fatalf("InsertTransfer: %v", err)
		}
	}

	summary, err := repo.SummaryByStyle(ctx)
	if err != nil {
		t.Fatalf("SummaryByStyle() error = %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 styles, got %+v", summary)
	}
	if summary[0].Style != 0 || summary[0].Total != 1 || summary[0].Failed != 0 {
		t.Errorf("style 0 = %+v", summary[0])
	}
	s := summary[1]
	if s.Style != 2 || s.StyleName != "style2" || s.Total != 3 || s.Failed != 1 || s.AvgDurationMS != 12.5 {
		t.Errorf("style 2 = %+v", s)
	}
}

func TestRepository_DefaultLimit(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil, nil)
	ctx := context.Background()

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		if _, err := repo.InsertTransfer(ctx, sampleRecord(fmt.Sprintf("r%02d", i), 0, core.TransferSucceeded, time.Now())); err != nil {
			t.Fatalf("InsertTransfer: %v", err)
		}
	}
	recent, err := repo.RecentTransfers(ctx, 0)
	if err != nil {
		t.Fatalf("RecentTransfers() error = %v", err)
	}
	if len(recent) != DefaultHistoryLimit {
		t.Errorf("len = %d, want %d", len(recent), DefaultHistoryLimit)
	}
}

func TestRepository_ObserveTransfer(t *testing.T) {
	t.Run("synchronous", func(t *testing.T) {
		database := newTestDatabase(t)
		repo := NewRepository(database, nil, nil)
		repo.ObserveTransfer(sampleRecord("sync-1", 3, core.TransferSucceeded, time.Now()))

		if count, _ := repo.CountTransfers(context.Background()); count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("async", func(t *testing.T) {
		database := newTestDatabase(t)
		repo := NewRepository(database, nil, nil)
		writer := NewAsyncWriter(repo.AsyncWriteHandler(), 10)
		repo.SetAsyncWriter(writer)
		writer.Start()

		for i := 0; i < 5; i++ {
			repo.ObserveTransfer(sampleRecord(fmt.Sprintf("async-%d", i), i, core.TransferSucceeded, time.Now()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := writer.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if count, _ := repo.CountTransfers(context.Background()); count != 5 {
			t.Errorf("count = %d, want 5", count)
		}
		if writer.Failed() != 0 {
			t.Errorf("Failed() = %d", writer.Failed())
		}
	})
}

func TestAsyncWriter(t *testing.T) {
	t.Run("drains on stop", func(t *testing.T) {
		var handled atomic.Int64
		w := NewAsyncWriter(func(op WriteOperation) error {
			handled.Add(1)
			return nil
		}, 50)
		for i := 0; i < 20; i++ {
			if !w.Write(i) {
				t.Fatalf("Write(%d) = false", i)
			}
		}
		if w.Pending() != 20 {
			t.Errorf("Pending() = %d", w.Pending())
		}
		w.Start()
		if err := w.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if handled.Load() != 20 {
			t.Errorf("handled = %d, want 20", handled.Load())
		}
		if w.Write(99) {
			t.Error("Write after Stop succeeded")
		}
		if w.IsStarted() {
			t.Error("IsStarted() after Stop")
		}
	})

	t.Run("full buffer rejects", func(t *testing.T) {
		w := NewAsyncWriter(func(op WriteOperation) error { return nil }, 1)
		if !w.Write(1) {
			t.Fatal("first write rejected")
		}
		if w.Write(2) {
			t.Error("second write should be rejected while not started")
		}
	})

	t.Run("counts failures", func(t *testing.T) {
		w := NewAsyncWriter(func(op WriteOperation) error { return errors.New("boom") }, 5)
		w.Write("x")
		w.Write("y")
		w.Start()
		w.Stop(context.Background())
		if w.Failed() != 2 {
			t.Errorf("Failed() = %d, want 2", w.Failed())
		}
	})
}

func TestCleanup(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil, nil)
	ctx := context.Background()

	old := sampleRecord("old", 0, core.TransferSucceeded, time.Now().Add(-48*time.Hour))
	fresh := sampleRecord("fresh", 0, core.TransferSucceeded, time.Now())
	for _, rec := range []core.TransferRecord{old, fresh} {
		if _, err := repo.InsertTransfer(ctx, rec); err != nil {
			t.Fatalf("InsertTransfer: %v", err)
		}
	}

	tests := []struct {
		name      string
		retention time.Duration
		deleted   int64
		wantErr   bool
	}{
		{"negative", -time.Hour, 0, true},
		{"disabled", 0, 0, false},
		{"keeps recent", 24 * time.Hour, 1, false},
		{"nothing left to delete", 24 * time.Hour, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := database.Cleanup(ctx, tt.retention)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Cleanup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if result.Deleted != tt.deleted {
				t.Errorf("Deleted = %d, want %d", result.Deleted, tt.deleted)
			}
		})
	}

	if _, err := repo.TransferByRequestID(ctx, "fresh"); err != nil {
		t.Errorf("fresh record removed: %v", err)
	}
	if _, err := repo.TransferByRequestID(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old record kept: %v", err)
	}
}

func TestStartCleanupScheduler(t *testing.T) {
	database := newTestDatabase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan CleanupResult, 1)
	database.StartCleanupScheduler(ctx, time.Hour, 0, func(r CleanupResult, err error) {
		if err != nil {
			t.Errorf("cleanup error: %v", err)
		}
		results <- r
	})

	select {
	case r := <-results:
		if r.Deleted != 0 {
			t.Errorf("Deleted = %d", r.Deleted)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run")
	}
}
