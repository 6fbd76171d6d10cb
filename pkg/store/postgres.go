package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS restaurants (
	ikyu_id    TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS location_groups (
	group_key  TEXT PRIMARY KEY,
	ids        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Postgres stores records as JSONB rows.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the tables if needed.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres store needs a database URL")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Restaurant returns the stored JSON for id.
func (p *Postgres) Restaurant(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM restaurants WHERE ikyu_id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query restaurant %s: %w", id, err)
	}
	return data, nil
}

// PutRestaurant upserts the row for id.
func (p *Postgres) PutRestaurant(ctx context.Context, id string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO restaurants (ikyu_id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (ikyu_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		id, data)
	if err != nil {
		return fmt.Errorf("upsert restaurant %s: %w", id, err)
	}
	return nil
}

// RestaurantIDs returns every stored ID, sorted.
func (p *Postgres) RestaurantIDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT ikyu_id FROM restaurants ORDER BY ikyu_id`)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupIDs returns the ID list stored for key.
func (p *Postgres) GroupIDs(ctx context.Context, key string) ([]string, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT ids FROM location_groups WHERE group_key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query group %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing group %s: %w", key, err)
	}
	return ids, nil
}

// PutGroup upserts the group's ID list.
func (p *Postgres) PutGroup(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO location_groups (group_key, ids, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (group_key) DO UPDATE SET ids = EXCLUDED.ids, updated_at = now()`,
		key, data)
	if err != nil {
		return fmt.Errorf("upsert group %s: %w", key, err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
