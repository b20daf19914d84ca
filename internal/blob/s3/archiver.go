package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// archiveLockTTL bounds how long one instance may hold the archival lock.
const archiveLockTTL = 10 * time.Minute

// Archiver moves aged trades out of the primary store into object storage.
// Each run serializes every trade older than the retention cutoff to JSONL,
// uploads the batch, and only then deletes the archived rows. The distributed
// lock keeps concurrent instances from archiving the same window twice.
type Archiver struct {
	writer domain.BlobWriter
	trades domain.TradeStore
	locks  domain.LockManager
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, locks domain.LockManager, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		trades: trades,
		locks:  locks,
		logger: logger,
	}
}

// ArchiveTrades archives all trades executed before the cutoff and removes
// them from the primary store. Returns the number of trades archived. A run
// that finds another instance holding the lock is a no-op.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	unlock, err := a.locks.Acquire(ctx, "archive:trades", archiveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.Debug("trade archival already running elsewhere")
			return 0, nil
		}
		return 0, fmt.Errorf("s3blob: acquire archive lock: %w", err)
	}
	defer unlock()

	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	// Delete only after the upload succeeded.
	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(trades)), fmt.Errorf("s3blob: archive trades delete: %w", err)
	}

	a.logger.Info("trades archived",
		slog.String("path", path),
		slog.Int("archived", len(trades)),
		slog.Int64("deleted", deleted),
		slog.Time("before", before),
	)
	return int64(len(trades)), nil
}

// Run executes ArchiveTrades on the given interval until the context ends.
// retention determines the cutoff of each run.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if _, err := a.ArchiveTrades(ctx, cutoff); err != nil {
				a.logger.Error("trade archival failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
