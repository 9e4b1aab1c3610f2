package database

import (
	"context"
	"fmt"

	"github.com/andresmejia3/memento/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Postgres manages the PostgreSQL connection and pgvector operations.
type Postgres struct {
	conn *pgx.Conn
}

// NewPostgres establishes a connection to the database and ensures the schema is initialized.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	// The vector type only exists once the extension is created
	if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to register pgvector types: %w", err)
	}

	return &Postgres{conn: conn}, nil
}

// initSchema creates the people table and vector extension if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS people (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			relation TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			embedding VECTOR(%d),
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS people_user_id_idx ON people (user_id, created_at DESC);
	`, EmbeddingDim)
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Postgres) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// PeopleInScope loads every person of scope carrying an embedding.
func (s *Postgres) PeopleInScope(ctx context.Context, scope string) ([]types.PersonRecord, error) {
	return s.queryPeople(ctx, `
		SELECT id::text, user_id, name, relation, summary, embedding
		FROM people
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY id
	`, scope)
}

// ListPeople returns all people of scope, enrolled or not.
func (s *Postgres) ListPeople(ctx context.Context, scope string) ([]types.PersonRecord, error) {
	return s.queryPeople(ctx, `
		SELECT id::text, user_id, name, relation, summary, embedding
		FROM people
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, scope)
}

func (s *Postgres) queryPeople(ctx context.Context, query, scope string) ([]types.PersonRecord, error) {
	rows, err := s.conn.Query(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []types.PersonRecord
	for rows.Next() {
		var p types.PersonRecord
		var emb *pgvector.Vector
		if err := rows.Scan(&p.ID, &p.Scope, &p.Name, &p.Relation, &p.Summary, &emb); err != nil {
			return nil, err
		}
		if emb != nil {
			p.Embedding = toFloat64(emb.Slice())
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// Scopes lists the distinct owners of people records.
func (s *Postgres) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT user_id FROM people ORDER BY user_id`)
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
