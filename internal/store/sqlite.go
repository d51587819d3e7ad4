package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shelfwise/shelfwise/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pending_reviews (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL,
	document_title TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL,
	value          TEXT NOT NULL,
	reasoning      TEXT NOT NULL DEFAULT '',
	alternatives   TEXT,
	attempts       INTEGER NOT NULL DEFAULT 0,
	last_feedback  TEXT NOT NULL DEFAULT '',
	metadata       TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS blocked_suggestions (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	scope           TEXT NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	source_document TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_pending_reviews_kind ON pending_reviews(kind);
CREATE INDEX IF NOT EXISTS idx_pending_reviews_document ON pending_reviews(document_id);
CREATE INDEX IF NOT EXISTS idx_blocked_scope ON blocked_suggestions(scope);
CREATE INDEX IF NOT EXISTS idx_blocked_normalized ON blocked_suggestions(normalized_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddPendingReview(ctx context.Context, item *model.PendingReviewItem) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	altJSON, err := json.Marshal(item.Alternatives)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal alternatives")
	}
	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_reviews
		 (id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, item.DocumentID, item.DocumentTitle, string(item.Kind), item.Value,
		item.Reasoning, string(altJSON), item.Attempts, item.LastFeedback, string(metaJSON), now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert pending review")
	}

	item.ID = id
	item.CreatedAt = now
	return id, nil
}

func (s *SQLiteStore) ListPendingReviews(ctx context.Context, kind model.SuggestionKind) ([]model.PendingReviewItem, error) {
	query := `SELECT id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at
	          FROM pending_reviews`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending reviews")
	}
	defer rows.Close()

	var items []model.PendingReviewItem
	for rows.Next() {
		item, err := scanPendingReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list pending reviews iterate")
}

func (s *SQLiteStore) GetPendingReview(ctx context.Context, id string) (*model.PendingReviewItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, document_title, kind, value, reasoning, alternatives, attempts, last_feedback, metadata, created_at
		 FROM pending_reviews WHERE id = ?`,
		id,
	)
	item, err := scanPendingReview(row)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *SQLiteStore) DeletePendingReview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_reviews WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete pending review %s", id)
	}
	return checkRowsAffected(res, "pending review", id)
}

func (s *SQLiteStore) AddBlocked(ctx context.Context, entry *model.BlockedSuggestion) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocked_suggestions (id, name, normalized_name, scope, reason, source_document, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entry.Name, entry.NormalizedName, string(entry.Scope), entry.Reason, entry.SourceDocument, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert blocked suggestion")
	}

	entry.ID = id
	entry.CreatedAt = now
	return id, nil
}

func (s *SQLiteStore) ListBlocked(ctx context.Context, scope model.Scope) ([]model.BlockedSuggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, scope, reason, source_document, created_at
		 FROM blocked_suggestions WHERE scope = ? ORDER BY created_at DESC`,
		string(scope),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list blocked")
	}
	defer rows.Close()
	return collectBlocked(rows)
}

func (s *SQLiteStore) ListAllBlocked(ctx context.Context) ([]model.BlockedSuggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, scope, reason, source_document, created_at
		 FROM blocked_suggestions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list all blocked")
	}
	defer rows.Close()
	return collectBlocked(rows)
}

func (s *SQLiteStore) RemoveBlocked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocked_suggestions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove blocked %s", id)
	}
	return checkRowsAffected(res, "blocked suggestion", id)
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

func (s *SQLiteStore) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all settings")
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan setting")
		}
		settings[k] = v
	}
	return settings, eris.Wrap(rows.Err(), "sqlite: all settings iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPendingReview(row scannable) (*model.PendingReviewItem, error) {
	var item model.PendingReviewItem
	var kind string
	var altJSON, metaJSON sql.NullString

	err := row.Scan(&item.ID, &item.DocumentID, &item.DocumentTitle, &kind, &item.Value,
		&item.Reasoning, &altJSON, &item.Attempts, &item.LastFeedback, &metaJSON, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("pending review not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan pending review")
	}

	item.Kind = model.SuggestionKind(kind)
	if altJSON.Valid && altJSON.String != "" {
		if err := json.Unmarshal([]byte(altJSON.String), &item.Alternatives); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal alternatives")
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &item.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
	}
	return &item, nil
}

func collectBlocked(rows *sql.Rows) ([]model.BlockedSuggestion, error) {
	var entries []model.BlockedSuggestion
	for rows.Next() {
		var e model.BlockedSuggestion
		var scope string
		if err := rows.Scan(&e.ID, &e.Name, &e.NormalizedName, &scope, &e.Reason, &e.SourceDocument, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan blocked suggestion")
		}
		e.Scope = model.Scope(scope)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: blocked iterate")
}
