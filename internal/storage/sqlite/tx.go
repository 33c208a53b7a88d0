package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// isBusy reports whether err is a transient SQLITE_BUSY / locked failure
// worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "locking protocol")
}

// beginImmediate acquires the write lock up front so the transaction cannot
// fail with SQLITE_BUSY at commit time. Contention with a concurrent writer
// is retried with exponential backoff.
func beginImmediate(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second

	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// inTx runs fn inside a single BEGIN IMMEDIATE transaction on a dedicated
// connection. Any error from fn rolls the transaction back; no partial
// writes are visible.
func (s *Store) inTx(ctx context.Context, op string, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return wrapDBError(op, err)
	}
	defer conn.Close()

	if err := beginImmediate(ctx, conn); err != nil {
		return wrapDBError(op, err)
	}

	committed := false
	defer func() {
		if !committed {
			// Rollback must run even when ctx is already cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return wrapDBError(op, err)
	}
	committed = true
	return nil
}
