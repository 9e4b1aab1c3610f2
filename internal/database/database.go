// Package database provides read access to the people collection the recognizer
// loads its enrolled faces from. Two backends are supported: PostgreSQL with
// pgvector, and a local SQLite file for offline use.
package database

import (
	"context"
	"strings"

	"github.com/andresmejia3/memento/internal/types"
)

// EmbeddingDim is the length of the face vectors produced by the detector worker.
const EmbeddingDim = 512

// Repository is the read side of the people collection.
type Repository interface {
	// PeopleInScope returns every person of scope that has an embedding, ordered by ID.
	PeopleInScope(ctx context.Context, scope string) ([]types.PersonRecord, error)
	// ListPeople returns every person of scope, with or without an embedding.
	ListPeople(ctx context.Context, scope string) ([]types.PersonRecord, error)
	// Scopes returns the distinct scopes that own at least one person.
	Scopes(ctx context.Context) ([]string, error)
	Close(ctx context.Context)
}

// Open picks the backend from the connection string: "sqlite://<path>" or a
// path ending in .db/.sqlite opens SQLite, anything else is handed to pgx.
func Open(ctx context.Context, connString string) (Repository, error) {
	if path, ok := sqlitePath(connString); ok {
		return NewSQLite(ctx, path)
	}
	return NewPostgres(ctx, connString)
}

func sqlitePath(connString string) (string, bool) {
	if p, ok := strings.CutPrefix(connString, "sqlite://"); ok {
		return p, true
	}
	if strings.HasSuffix(connString, ".db") || strings.HasSuffix(connString, ".sqlite") {
		return connString, true
	}
	return "", false
}

func toFloat64(vec []float32) []float64 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
