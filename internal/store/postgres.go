package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"collabtext/internal/crdt"
)

const schema = `
CREATE TABLE IF NOT EXISTS collabtext_snapshots (
	doc_id     text PRIMARY KEY,
	chars      jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// Postgres stores snapshots in a single jsonb-keyed table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the snapshot table
// exists.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring snapshot table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, docID string, chars []crdt.Char) error {
	buf, err := json.Marshal(chars)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO collabtext_snapshots (doc_id, chars, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (doc_id) DO UPDATE SET chars = $2, updated_at = now()`,
		docID, buf)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", docID, err)
	}
	return nil
}

func (p *Postgres) LoadSnapshot(ctx context.Context, docID string) ([]crdt.Char, error) {
	var buf []byte
	err := p.pool.QueryRow(ctx,
		`SELECT chars FROM collabtext_snapshots WHERE doc_id = $1`, docID).Scan(&buf)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", docID, err)
	}
	var chars []crdt.Char
	if err := json.Unmarshal(buf, &chars); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %s: %w", docID, err)
	}
	return chars, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
