package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"                   // "pgx" driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // "libsql" driver
	_ "modernc.org/sqlite"                               // "sqlite" driver
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverPostgres = "pgx"
)

// SQLStore keeps one row per conversation.
type SQLStore struct {
	*manager
	db     *sql.DB
	driver string

	schemaOnce sync.Once
	schemaErr  error
}

var _ Store = (*SQLStore)(nil)

// OpenSQL opens a store on driver ("sqlite", "libsql" or "pgx") and dsn.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverLibSQL, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: sqlite, libsql, pgx)", driver)
	}

	db, err := sql.Open(driver, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time; SQLite serializes anyway.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	s.manager = newManager(s)
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS conversations (
  id TEXT PRIMARY KEY,
  mode TEXT NOT NULL,
  state TEXT NOT NULL,
  iteration INTEGER NOT NULL DEFAULT 0,
  data TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`)
		if err != nil {
			s.schemaErr = fmt.Errorf("failed to create conversations table: %w", err)
		}
	})
	return s.schemaErr
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) load(ctx context.Context, id string) (*Conversation, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM conversations WHERE id = ?`), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return decode([]byte(data))
}

func (s *SQLStore) save(ctx context.Context, c *Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.rebind(`
INSERT INTO conversations (id, mode, state, iteration, data, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id)
DO UPDATE SET mode=EXCLUDED.mode,
  state=EXCLUDED.state,
  iteration=EXCLUDED.iteration,
  data=EXCLUDED.data,
  updated_at=EXCLUDED.updated_at`),
		c.ID, string(c.Mode), string(c.State), c.Iteration, string(data), c.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) loadAll(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM conversations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c, err := decode([]byte(data))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
