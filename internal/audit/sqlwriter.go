package audit

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx as database/sql driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const (
	bufferSize    = 4096
	flushInterval = 200 * time.Millisecond
	flushBatch    = 256
	drainTimeout  = 2 * time.Second
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS tool_events (
	request_id        TEXT NOT NULL,
	session_id        TEXT NOT NULL,
	ts                TIMESTAMP NOT NULL,
	tool_name         TEXT NOT NULL,
	arguments_preview TEXT NOT NULL,
	arguments_hash    TEXT NOT NULL,
	verdict           TEXT NOT NULL,
	success           BOOLEAN NOT NULL,
	error             TEXT NOT NULL,
	latency_ms        DOUBLE PRECISION NOT NULL
)`

const insertStmt = `
INSERT INTO tool_events (
	request_id, session_id, ts, tool_name,
	arguments_preview, arguments_hash,
	verdict, success, error, latency_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// SQLWriter persists tool events asynchronously through database/sql.
// Write() is non-blocking — events are buffered and batch-inserted in a
// background goroutine. The driver is "sqlite" for local desktop sessions
// or "pgx" for a shared Postgres deployment; the DDL is valid for both.
type SQLWriter struct {
	db      *sql.DB
	buffer  chan *ToolEvent
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewSQLWriter opens the store, ensures the events table exists, and starts
// the background flush loop.
func NewSQLWriter(driver, dsn string, logger *zap.Logger) (*SQLWriter, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(context.Background(), createTableStmt); err != nil {
		db.Close()
		return nil, err
	}

	w := &SQLWriter{
		db:      db,
		buffer:  make(chan *ToolEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go w.flushLoop()
	return w, nil
}

// Write queues a tool event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (w *SQLWriter) Write(event *ToolEvent) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("audit buffer full, dropping event",
			zap.String("request_id", event.RequestID),
		)
	}
}

// Close signals the flush loop to drain remaining events, waits for it to
// finish, and closes the database. Safe to call once.
func (w *SQLWriter) Close() {
	close(w.done)
	<-w.flushed
	_ = w.db.Close()
}

func (w *SQLWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*ToolEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *SQLWriter) flush(events []*ToolEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.logger.Error("audit begin tx failed", zap.Error(err))
		return
	}

	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		w.logger.Error("audit prepare failed", zap.Error(err))
		_ = tx.Rollback()
		return
	}

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.RequestID,
			e.SessionID,
			e.Timestamp,
			e.ToolName,
			e.ArgumentsPreview,
			e.ArgumentsHash,
			e.Verdict,
			e.Success,
			e.Error,
			e.LatencyMs,
		); err != nil {
			w.logger.Error("audit insert failed",
				zap.String("request_id", e.RequestID),
				zap.Error(err),
			)
		}
	}

	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		w.logger.Error("audit commit failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}
