package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN         string        `envconfig:"DSN" required:"true"`
	DialTimeout time.Duration `split_words:"true" default:"5s"`
	AutoMigrate bool          `split_words:"true" default:"true"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sales_sessions,alias:ss"`

	SessionID string        `bun:"session_id,pk"`
	State     *SessionState `bun:"state,type:jsonb,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

// PostgresStore keeps SessionState as a jsonb document per session.
type PostgresStore struct {
	db *bun.DB
}

func OpenPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := NewPostgresStore(db)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*sessionRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create sales_sessions table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	row := new(sessionRow)
	err := s.selectQuery(row, sessionID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("select session state: %w", err)
	}
	if row.State == nil {
		return nil, ErrStateNotFound
	}

	row.State.EnsureMaps()
	if err := row.State.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session state loaded from store: %w", err)
	}
	return row.State, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(st.SessionID) == "" {
		return ErrInvalidSession
	}
	prepareForSave(st)

	if _, err := s.upsertQuery(st).Exec(ctx); err != nil {
		return fmt.Errorf("upsert session state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	if _, err := s.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) selectQuery(row *sessionRow, sessionID string) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(row).
		Where("session_id = ?", sessionID).
		Limit(1)
}

func (s *PostgresStore) upsertQuery(st *SessionState) *bun.InsertQuery {
	row := &sessionRow{
		SessionID: st.SessionID,
		State:     st,
		UpdatedAt: st.UpdatedAt,
	}
	return s.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("updated_at = EXCLUDED.updated_at")
}
