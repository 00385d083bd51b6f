package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atmx/tradestore/internal/model"
)

// Schema creates the trades table. The composite primary key is the only
// uniqueness constraint; no secondary indexes are required.
const Schema = `CREATE TABLE IF NOT EXISTS trades (
	trade_id         TEXT    NOT NULL,
	version          INTEGER NOT NULL CHECK (version >= 0),
	counter_party_id TEXT    NOT NULL,
	book_id          TEXT    NOT NULL,
	maturity_date    DATE    NOT NULL,
	creation_date    DATE    NOT NULL,
	expired          BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (trade_id, version)
)`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgreSQL-backed store. db is normally a
// *pgxpool.Pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMaxVersion(ctx context.Context, tradeID string) (int, bool, error) {
	var version int
	err := s.db.QueryRow(ctx,
		`SELECT version FROM trades WHERE trade_id = $1
		 ORDER BY version DESC LIMIT 1`, tradeID).
		Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres: get max version %s: %w", tradeID, err)
	}
	return version, true, nil
}

func (s *PostgresStore) GetByIDAndVersion(ctx context.Context, tradeID string, version int) (*model.Trade, bool, error) {
	t, err := scanTrade(s.db.QueryRow(ctx,
		`SELECT trade_id, version, counter_party_id, book_id,
		        maturity_date, creation_date, expired
		 FROM trades WHERE trade_id = $1 AND version = $2`, tradeID, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get trade %s v%d: %w", tradeID, version, err)
	}
	return t, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, t *model.Trade) (*model.Trade, error) {
	saved, err := scanTrade(s.db.QueryRow(ctx,
		`INSERT INTO trades (trade_id, version, counter_party_id, book_id, maturity_date, creation_date, expired)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (trade_id, version) DO UPDATE
		 SET counter_party_id = EXCLUDED.counter_party_id,
		     book_id = EXCLUDED.book_id,
		     maturity_date = EXCLUDED.maturity_date,
		     creation_date = EXCLUDED.creation_date,
		     expired = EXCLUDED.expired
		 RETURNING trade_id, version, counter_party_id, book_id,
		           maturity_date, creation_date, expired`,
		t.TradeID, t.Version, t.CounterPartyID, t.BookID,
		model.DateOf(t.MaturityDate), model.DateOf(t.CreationDate), t.Expired,
	))
	if err != nil {
		return nil, fmt.Errorf("postgres: save trade %s v%d: %w", t.TradeID, t.Version, err)
	}
	return saved, nil
}

func (s *PostgresStore) BulkExpire(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE trades SET expired = TRUE
		 WHERE maturity_date < $1 AND NOT expired`, model.DateOf(cutoff))
	if err != nil {
		return 0, fmt.Errorf("postgres: bulk expire before %s: %w", model.FormatDate(cutoff), err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM trades`); err != nil {
		return fmt.Errorf("postgres: delete all: %w", err)
	}
	return nil
}

func scanTrade(row pgx.Row) (*model.Trade, error) {
	var t model.Trade
	if err := row.Scan(&t.TradeID, &t.Version, &t.CounterPartyID, &t.BookID,
		&t.MaturityDate, &t.CreationDate, &t.Expired); err != nil {
		return nil, err
	}
	t.Normalize()
	return &t, nil
}
