package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// timeFormat is how created, last_modified and undolog timestamps are stored.
// It sorts lexically and matches strftime('%Y-%m-%d %H:%M:%f').
const timeFormat = "2006-01-02 15:04:05.000"

// stamp returns the current time truncated to storage precision, together
// with its stored form.
func (b *Backend) stamp() (time.Time, string) {
	s := b.now().UTC().Format(timeFormat)
	t, _ := time.Parse(timeFormat, s)
	return t, s
}

// timestamp scans a stored timestamp. The driver hands DATETIME columns back
// either as time.Time or as text depending on the value.
type timestamp struct{ t *time.Time }

func (ts timestamp) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*ts.t = time.Time{}
	case time.Time:
		*ts.t = x.UTC()
	case string:
		return ts.parse(x)
	case []byte:
		return ts.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
	return nil
}

func (ts timestamp) parse(s string) error {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Rows written by SQL defaults may carry a different precision.
		t, err = time.Parse("2006-01-02 15:04:05.999999999", s)
		if err != nil {
			return fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	*ts.t = t.UTC()
	return nil
}

// classify maps driver errors onto the storage error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		types.ErrLockContention, types.ErrIntegrityViolation, types.ErrNotFound,
		types.ErrLibraryDetached, context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	var serr *msqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", types.ErrLockContention, err)
	case sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %v", types.ErrIntegrityViolation, err)
	}
	return err
}

// withRetry runs fn until it succeeds, fails with anything other than lock
// contention, or the retry budget is spent. The backoff doubles per attempt.
func (b *Backend) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := time.Duration(b.config.RetryBackoffMS) * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := classify(fn())
		if err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrLockContention) || attempt >= b.config.MaxRetries {
			return fmt.Errorf("%s: %w", op, err)
		}
		b.log.WithFields(logrus.Fields{"op": op, "attempt": attempt + 1, "backoff": backoff}).
			Debug("database locked, retrying")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// withTx runs fn in a write transaction, retried on lock contention. The
// transaction begins IMMEDIATE, so the write lock is taken up front.
func (b *Backend) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	db, err := b.database()
	if err != nil {
		return err
	}
	return b.runTx(ctx, db, op, fn)
}

func (b *Backend) runTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	return b.withRetry(ctx, op, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// notFound turns sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	return err
}

// nullable converts an optional string to a bind value.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// parseIDs normalizes identifiers, rejecting any malformed one.
func parseIDs(ids ...string) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		p, err := types.ParseID(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, id)
		}
		out[i] = p
	}
	return out, nil
}
