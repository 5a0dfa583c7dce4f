package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGSource struct{ DB *pgxpool.Pool }

func (p *PGSource) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := p.DB.Query(ctx, `SELECT key, value FROM bot_config`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings: load: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Snapshot{}, fmt.Errorf("settings: scan: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("settings: load: %w", err)
	}
	return Snapshot{values: values}, nil
}

func (p *PGSource) Set(ctx context.Context, key, value string) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO bot_config(key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}
