package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"expenex/internal/log"
	"expenex/internal/session"
)

const sessionsTable = "sessions"

var sessionColumns = []string{"id", "token", "user_id", "created_at"}

// SessionRepository is a session.Store backed by SQLite.
type SessionRepository struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSessionRepository opens dbPath, creating its directory, and migrates the schema.
func NewSessionRepository(dbPath string, logger *log.Logger) (*SessionRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SessionRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SessionRepository) Get(ctx context.Context, id string) (session.Session, error) {
	query, args, err := sq.Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return session.Session{}, fmt.Errorf("build select: %w", err)
	}

	var (
		s         session.Session
		createdAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.Token, &s.UserID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("select session: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, nil
}

// Save inserts s or replaces the token and user of an existing id.
func (r *SessionRepository) Save(ctx context.Context, s session.Session) error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	query, args, err := sq.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(s.ID, s.Token, s.UserID, s.CreatedAt.Unix()).
		Suffix("ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_id = excluded.user_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	r.logger.DebugContext(ctx, "Session saved",
		log.FieldSessionID, s.ID,
		log.FieldUserID, s.UserID)
	return nil
}

// Delete removes id; deleting an unknown id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query, args, err := sq.Delete(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeBefore deletes sessions created before cutoff and returns how many were removed.
func (r *SessionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := sq.Delete(sessionsTable).
		Where(sq.Lt{"created_at": cutoff.Unix()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Stale sessions purged", "removed", n)
	}
	return n, nil
}

// Count returns the number of stored sessions.
func (r *SessionRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(sessionsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
