package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolSnapshot/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pool_snapshots (
	chain            TEXT        NOT NULL,
	pool_address     TEXT        NOT NULL,
	snapshot_ts      BIGINT      NOT NULL,
	name             TEXT        NOT NULL,
	symbol           TEXT        NOT NULL,
	pool_type        TEXT        NOT NULL,
	family           TEXT        NOT NULL,
	basepool_address TEXT,
	params           JSONB       NOT NULL,
	coins            JSONB       NOT NULL,
	reserves         JSONB       NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain, pool_address, snapshot_ts)
)`

// Store provides Postgres persistence for pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// snapshotRow is one pool of a snapshot tree in table form.
type snapshotRow struct {
	Chain           string
	PoolAddress     string
	SnapshotTs      int64
	Name            string
	Symbol          string
	PoolType        string
	Family          string
	BasepoolAddress *string
	Params          []byte
	Coins           []byte
	Reserves        []byte
}

// snapshotRows flattens snap and its base pools into rows.
func snapshotRows(snap *model.PoolSnapshot) ([]snapshotRow, error) {
	var rows []snapshotRow
	for _, p := range snap.Flatten() {
		params, err := json.Marshal(p.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal params of %s: %w", p.Address, err)
		}
		coins, err := json.Marshal(p.Coins)
		if err != nil {
			return nil, fmt.Errorf("marshal coins of %s: %w", p.Address, err)
		}
		reserves, err := json.Marshal(p.Reserves)
		if err != nil {
			return nil, fmt.Errorf("marshal reserves of %s: %w", p.Address, err)
		}
		row := snapshotRow{
			Chain:       p.Chain,
			PoolAddress: p.Address,
			SnapshotTs:  p.Timestamp,
			Name:        p.Name,
			Symbol:      p.Symbol,
			PoolType:    p.PoolType,
			Family:      p.Params.Family.String(),
			Params:      params,
			Coins:       coins,
			Reserves:    reserves,
		}
		if p.Basepool != nil {
			base := p.Basepool.Address
			row.BasepoolAddress = &base
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PutSnapshot upserts snap and every nested base pool.
func (s *Store) PutSnapshot(ctx context.Context, snap *model.PoolSnapshot) error {
	if snap == nil {
		return nil
	}
	rows, err := snapshotRows(snap)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				chain, pool_address, snapshot_ts, name, symbol, pool_type, family,
				basepool_address, params, coins, reserves, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
			ON CONFLICT (chain, pool_address, snapshot_ts)
			DO UPDATE SET
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				pool_type = EXCLUDED.pool_type,
				family = EXCLUDED.family,
				basepool_address = EXCLUDED.basepool_address,
				params = EXCLUDED.params,
				coins = EXCLUDED.coins,
				reserves = EXCLUDED.reserves,
				updated_at = now()
		`,
			row.Chain,
			row.PoolAddress,
			row.SnapshotTs,
			row.Name,
			row.Symbol,
			row.PoolType,
			row.Family,
			row.BasepoolAddress,
			row.Params,
			row.Coins,
			row.Reserves,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LatestSnapshotTs returns the newest stored snapshot timestamp of a pool.
func (s *Store) LatestSnapshotTs(ctx context.Context, chain, address string) (int64, bool, error) {
	var ts int64
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_ts FROM pool_snapshots
		WHERE chain = $1 AND pool_address = $2
		ORDER BY snapshot_ts DESC LIMIT 1
	`, chain, address)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}
