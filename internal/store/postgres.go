package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shelfwise/shelfwise/internal/db"
	"github.com/shelfwise/shelfwise/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of a bootstrap scan.
var preparedStatements = map[string]string{
	"insert_pending_review": `INSERT INTO pending_reviews (id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"list_blocked_by_scope": `SELECT id, name, normalized_name, scope, reason, source_document, created_at FROM blocked_suggestions WHERE scope = $1 ORDER BY created_at DESC`,
	"get_setting":           `SELECT value FROM settings WHERE key = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pending_reviews (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id    TEXT NOT NULL,
	document_title TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL,
	value          TEXT NOT NULL,
	reasoning      TEXT NOT NULL DEFAULT '',
	alternatives   JSONB,
	attempts       INTEGER NOT NULL DEFAULT 0,
	last_feedback  TEXT NOT NULL DEFAULT '',
	metadata       JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blocked_suggestions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	scope           TEXT NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	source_document TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pending_reviews_kind ON pending_reviews(kind);
CREATE INDEX IF NOT EXISTS idx_pending_reviews_document ON pending_reviews(document_id);
CREATE INDEX IF NOT EXISTS idx_blocked_scope ON blocked_suggestions(scope);
CREATE INDEX IF NOT EXISTS idx_blocked_normalized ON blocked_suggestions(normalized_name);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AddPendingReview(ctx context.Context, item *model.PendingReviewItem) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	altJSON, err := json.Marshal(item.Alternatives)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal alternatives")
	}
	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pending_reviews (id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, item.DocumentID, item.DocumentTitle, string(item.Kind), item.Value,
		item.Reasoning, altJSON, item.Attempts, item.LastFeedback, metaJSON, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert pending review")
	}

	item.ID = id
	item.CreatedAt = now
	return id, nil
}

func (s *PostgresStore) ListPendingReviews(ctx context.Context, kind model.SuggestionKind) ([]model.PendingReviewItem, error) {
	query := `SELECT id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at
	          FROM pending_reviews`
	var args []any
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending reviews")
	}
	defer rows.Close()

	var items []model.PendingReviewItem
	for rows.Next() {
		item, err := scanPendingReviewPgx(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list pending reviews iterate")
}

func (s *PostgresStore) GetPendingReview(ctx context.Context, id string) (*model.PendingReviewItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at
		 FROM pending_reviews WHERE id = $1`,
		id,
	)
	item, err := scanPendingReviewPgx(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pending review %s", id)
	}
	return item, nil
}

func (s *PostgresStore) DeletePendingReview(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_reviews WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete pending review %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pending review not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) AddBlocked(ctx context.Context, entry *model.BlockedSuggestion) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO blocked_suggestions (id, name, normalized_name, scope, reason, source_document, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, entry.Name, entry.NormalizedName, string(entry.Scope), entry.Reason, entry.SourceDocument, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert blocked suggestion")
	}

	entry.ID = id
	entry.CreatedAt = now
	return id, nil
}

func (s *PostgresStore) ListBlocked(ctx context.Context, scope model.Scope) ([]model.BlockedSuggestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, normalized_name, scope, reason, source_document, created_at
		 FROM blocked_suggestions WHERE scope = $1 ORDER BY created_at DESC`,
		string(scope),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list blocked")
	}
	defer rows.Close()
	return collectBlockedPgx(rows)
}

func (s *PostgresStore) ListAllBlocked(ctx context.Context) ([]model.BlockedSuggestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, normalized_name, scope, reason, source_document, created_at
		 FROM blocked_suggestions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list all blocked")
	}
	defer rows.Close()
	return collectBlockedPgx(rows)
}

func (s *PostgresStore) RemoveBlocked(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blocked_suggestions WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove blocked %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("blocked suggestion not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set setting %s", key)
}

func (s *PostgresStore) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all settings")
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan setting")
		}
		settings[k] = v
	}
	return settings, eris.Wrap(rows.Err(), "postgres: all settings iterate")
}

// helpers

func scanPendingReviewPgx(row pgx.Row) (*model.PendingReviewItem, error) {
	var item model.PendingReviewItem
	var kind string
	var altJSON, metaJSON []byte

	err := row.Scan(&item.ID, &item.DocumentID, &item.DocumentTitle, &kind, &item.Value,
		&item.Reasoning, &altJSON, &item.Attempts, &item.LastFeedback, &metaJSON, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("pending review not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan pending review")
	}

	item.Kind = model.SuggestionKind(kind)
	if len(altJSON) > 0 {
		if err := json.Unmarshal(altJSON, &item.Alternatives); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal alternatives")
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &item.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	return &item, nil
}

func collectBlockedPgx(rows pgx.Rows) ([]model.BlockedSuggestion, error) {
	var entries []model.BlockedSuggestion
	for rows.Next() {
		var e model.BlockedSuggestion
		var scope string
		if err := rows.Scan(&e.ID, &e.Name, &e.NormalizedName, &scope, &e.Reason, &e.SourceDocument, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan blocked suggestion")
		}
		e.Scope = model.Scope(scope)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: blocked iterate")
}
