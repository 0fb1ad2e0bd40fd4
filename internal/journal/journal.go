// Package journal records the outcome of every relayed submission. Entries
// hold no visitor data: only the service code, outcome and timing.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one submission outcome.
type Entry struct {
	ID        uuid.UUID
	Service   string
	Outcome   string
	Provider  string
	Duration  time.Duration
	CreatedAt time.Time
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Noop discards entries. Used when DATABASE_URL is not set.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error { return nil }

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresJournal writes entries to the submission_outcomes table.
type PostgresJournal struct {
	db  execer
	now func() time.Time
}

func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	if pool == nil {
		panic("journal: pgx pool required")
	}
	return newPostgresJournalWithExec(pool)
}

func newPostgresJournalWithExec(db execer) *PostgresJournal {
	if db == nil {
		panic("journal: exec required")
	}
	return &PostgresJournal{db: db, now: time.Now}
}

// Record inserts an entry, filling in the id and timestamp when absent.
func (j *PostgresJournal) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = j.now().UTC()
	}

	query := `
		INSERT INTO submission_outcomes (id, service, outcome, provider, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := j.db.Exec(ctx, query,
		entry.ID,
		entry.Service,
		entry.Outcome,
		entry.Provider,
		entry.Duration.Milliseconds(),
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("journal: insert outcome: %w", err)
	}
	return nil
}

var (
	_ Recorder = Noop{}
	_ Recorder = (*PostgresJournal)(nil)
)
