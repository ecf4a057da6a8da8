package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistry_Order(t *testing.T) {
	r := NewRegistry()
	var ran []string
	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			ran = append(ran, name)
			return nil
		}
	}

	r.Register("logger", PriorityLogger, record("logger"))
	r.Register("runtime", PriorityRuntime, record("runtime"))
	r.Register("http", PriorityHTTPServer, record("http"))
	r.Register("history-writer", PriorityHistory, record("history-writer"))
	r.Register("history-db", PriorityHistory, record("history-db"))

	want := []string{"http", "runtime", "history-writer", "history-db", "logger"}
	if got := r.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if errs := r.Shutdown(context.Background()); len(errs) != 0 {
		t.Fatalf("Shutdown() errors = %v", errs)
	}
	if strings.Join(ran, ",") != strings.Join(want, ",") {
		t.Errorf("ran %v, want %v", ran, want)
	}
}

func TestRegistry_CollectsErrors(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	calls := 0

	r.Register("first", 1, func(ctx context.Context) error { calls++; return boom })
	r.Register("second", 2, func(ctx context.Context) error { calls++; return nil })
	r.Register("third", 3, func(ctx context.Context) error { calls++; return errors.New("bang") })

	errs := r.Shutdown(context.Background())
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2", errs)
	}
	if !errors.Is(errs[0], boom) || !strings.HasPrefix(errs[0].Error(), "first: ") {
		t.Errorf("errs[0] = %v", errs[0])
	}
}

func TestRegistry_OnlyOnce(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register("once", 1, func(ctx context.Context) error { calls++; return nil })

	r.Shutdown(context.Background())
	r.Shutdown(context.Background())
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !r.IsClosed() {
		t.Error("IsClosed() = false")
	}

	r.Register("late", 1, func(ctx context.Context) error { return nil })
	if r.Count() != 1 {
		t.Errorf("Count() = %d, late registration accepted", r.Count())
	}
}
