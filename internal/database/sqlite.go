package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/andresmejia3/memento/internal/types"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a local people repository. Embeddings are stored as JSON arrays.
type SQLite struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewSQLite opens (or creates) the database file at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &SQLite{conn: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (db *SQLite) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		relation TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		embedding TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_people_user_id ON people(user_id, created_at);
	`
	_, err := db.conn.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (db *SQLite) Close(ctx context.Context) {
	db.conn.Close()
}

// PeopleInScope loads every person of scope carrying an embedding.
func (db *SQLite) PeopleInScope(ctx context.Context, scope string) ([]types.PersonRecord, error) {
	return db.queryPeople(ctx, `
		SELECT id, user_id, name, relation, summary, embedding
		FROM people
		WHERE user_id = ? AND embedding IS NOT NULL AND embedding != ''
		ORDER BY id
	`, scope)
}

// ListPeople returns all people of scope, enrolled or not.
func (db *SQLite) ListPeople(ctx context.Context, scope string) ([]types.PersonRecord, error) {
	return db.queryPeople(ctx, `
		SELECT id, user_id, name, relation, summary, embedding
		FROM people
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, scope)
}

func (db *SQLite) queryPeople(ctx context.Context, query, scope string) ([]types.PersonRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []types.PersonRecord
	for rows.Next() {
		var p types.PersonRecord
		var emb sql.NullString
		if err := rows.Scan(&p.ID, &p.Scope, &p.Name, &p.Relation, &p.Summary, &emb); err != nil {
			return nil, err
		}
		if emb.Valid && emb.String != "" {
			if err := json.Unmarshal([]byte(emb.String), &p.Embedding); err != nil {
				return nil, fmt.Errorf("person %s: malformed embedding: %w", p.ID, err)
			}
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// Scopes lists the distinct owners of people records.
func (db *SQLite) Scopes(ctx context.Context) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT user_id FROM people ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}
