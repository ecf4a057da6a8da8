package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go_styletransfer/core"
	"go_styletransfer/logging"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: record not found")

// timeLayout is how created_at is stored. Lexical order matches time order.
const timeLayout = "2006-01-02 15:04:05.000"

// DefaultHistoryLimit is the page size used when a caller passes limit <= 0.
const DefaultHistoryLimit = 20

// HistoryEntry is one row of transfer_history.
type HistoryEntry struct {
	RowID int64 `json:"row_id"`
	core.TransferRecord
}

// StyleSummary aggregates the history of one style slot.
type StyleSummary struct {
	Style         int     `json:"style"`
	StyleName     string  `json:"style_name"`
	Total         int64   `json:"total"`
	Failed        int64   `json:"failed"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Repository reads and writes the transfer history. With an AsyncWriter
// attached, ObserveTransfer queues inserts instead of blocking the caller.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
	logger      *logging.Logger
}

// NewRepository creates a repository. asyncWriter may be nil for
// synchronous writes; a nil logger discards output.
func NewRepository(db *Database, asyncWriter *AsyncWriter, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Repository{db: db, asyncWriter: asyncWriter, logger: logger.Named("history")}
}

// InsertTransfer stores rec and returns the new row id.
func (r *Repository) InsertTransfer(ctx context.Context, rec core.TransferRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO transfer_history (
			request_id, style, style_name, backend, use_gpu,
			width, height, duration_ms, status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Style,
		nullString(rec.StyleName),
		rec.Backend,
		rec.UseGPU,
		rec.Width,
		rec.Height,
		rec.DurationMS(),
		string(rec.Status),
		nullString(rec.Error),
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transfer %s: %w", rec.ID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// ObserveTransfer records rec, queueing it when the async writer is running
// and falling back to a synchronous insert when the queue is full.
func (r *Repository) ObserveTransfer(rec core.TransferRecord) {
	if r.asyncWriter != nil && r.asyncWriter.IsStarted() && r.asyncWriter.Write(rec) {
		return
	}
	if _, err := r.InsertTransfer(context.Background(), rec); err != nil {
		r.logger.Warn("failed to record transfer", zap.String("request_id", rec.ID), zap.Error(err))
	}
}

// AsyncWriteHandler returns the handler an AsyncWriter uses to drain
// queued records into this repository.
func (r *Repository) AsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		rec, ok := op.Data.(core.TransferRecord)
		if !ok {
			return fmt.Errorf("invalid operation type %T: expected core.TransferRecord", op.Data)
		}
		if _, err := r.InsertTransfer(context.Background(), rec); err != nil {
			r.logger.Warn("failed to record transfer", zap.String("request_id", rec.ID), zap.Error(err))
			return err
		}
		return nil
	}
}

// SetAsyncWriter attaches w. Call before the repository is shared.
func (r *Repository) SetAsyncWriter(w *AsyncWriter) {
	r.asyncWriter = w
}

const selectHistory = `
	SELECT id, request_id, style, COALESCE(style_name, ''), backend, use_gpu,
	       width, height, duration_ms, status, COALESCE(error_message, ''), created_at
	FROM transfer_history`

// RecentTransfers returns the newest entries first.
func (r *Repository) RecentTransfers(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx, selectHistory+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer history rows: %w", err)
	}
	return entries, nil
}

// TransferByRequestID returns the entry for one request id.
func (r *Repository) TransferByRequestID(ctx context.Context, requestID string) (HistoryEntry, error) {
	if r.db == nil {
		return HistoryEntry{}, fmt.Errorf("database connection is nil")
	}
	row, err := r.db.QueryRowContext(ctx, selectHistory+` WHERE request_id = ?`, requestID)
	if err != nil {
		return HistoryEntry{}, err
	}
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryEntry{}, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return e, err
}

// CountTransfers returns the number of stored entries.
func (r *Repository) CountTransfers(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	row, err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfer_history`)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transfer history: %w", err)
	}
	return count, nil
}

// SummaryByStyle aggregates totals, failures and mean duration per style,
// ordered by style index.
func (r *Repository) SummaryByStyle(ctx context.Context) ([]StyleSummary, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT style, COALESCE(MAX(style_name), ''), COUNT(*),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		       COALESCE(AVG(CASE WHEN status = 'success' THEN duration_ms END), 0)
		FROM transfer_history
		GROUP BY style
		ORDER BY style`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise transfer history: %w", err)
	}
	defer rows.Close()

	var out []StyleSummary
	for rows.Next() {
		var s StyleSummary
		if err := rows.Scan(&s.Style, &s.StyleName, &s.Total, &s.Failed, &s.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan style summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating style summary rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (HistoryEntry, error) {
	var e HistoryEntry
	var status, createdAt string
	var durationMS float64
	err := row.Scan(
		&e.RowID,
		&e.ID,
		&e.Style,
		&e.StyleName,
		&e.Backend,
		&e.UseGPU,
		&e.Width,
		&e.Height,
		&durationMS,
		&status,
		&e.Error,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan transfer history row: %w", err)
	}
	e.Status = core.TransferStatus(status)
	e.Duration = time.Duration(durationMS * float64(time.Millisecond))
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return e, nil
}

// nullString stores empty strings as NULL.
func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
