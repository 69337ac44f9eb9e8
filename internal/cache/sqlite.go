package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"SwingScanner/internal/model"
)

// SQLiteStore keeps cached series in a SQLite table.
type SQLiteStore struct {
	db  *sqlx.DB
	mu  sync.Mutex
	now func() time.Time
}

type cacheRow struct {
	Symbol    string `db:"symbol"`
	Timeframe string `db:"timeframe"`
	AsOf      string `db:"as_of"`
	FetchedAt int64  `db:"fetched_at"`
	Data      []byte `db:"data"`
}

// NewSQLiteStore opens (or creates) the database and its cache table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS market_data_cache (
		symbol     TEXT NOT NULL,
		timeframe  TEXT NOT NULL,
		as_of      TEXT NOT NULL,
		fetched_at INTEGER NOT NULL,
		data       BLOB NOT NULL,
		PRIMARY KEY (symbol, timeframe, as_of)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite cache opened")
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Get returns the entry for key if it is younger than ttl.
func (s *SQLiteStore) Get(ctx context.Context, key Key, ttl time.Duration) (Entry, bool) {
	if ttl <= 0 {
		return Entry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var row cacheRow
	err := s.db.GetContext(ctx, &row,
		`SELECT symbol, timeframe, as_of, fetched_at, data FROM market_data_cache
		 WHERE symbol = ? AND timeframe = ? AND as_of = ?`,
		key.Symbol, string(key.Timeframe), key.AsOf.Format(model.DateLayout))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("key", key.String()).Msg("cache read failed")
		}
		return Entry{}, false
	}

	fetchedAt := time.UnixMilli(row.FetchedAt)
	if !fresh(fetchedAt, s.now(), ttl) {
		return Entry{}, false
	}
	p, err := decode(row.Data)
	if err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("corrupt cache entry")
		return Entry{}, false
	}
	return Entry{Key: key, FetchedAt: fetchedAt, Bars: p.Bars}, true
}

// Put writes entry, replacing any existing row for its key.
func (s *SQLiteStore) Put(ctx context.Context, entry Entry) {
	data, err := encode(entry)
	if err != nil {
		log.Warn().Err(err).Str("key", entry.Key.String()).Msg("cache encode failed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO market_data_cache
		(symbol, timeframe, as_of, fetched_at, data)
		VALUES (:symbol, :timeframe, :as_of, :fetched_at, :data)`,
		cacheRow{
			Symbol:    entry.Symbol,
			Timeframe: string(entry.Timeframe),
			AsOf:      entry.AsOf.Format(model.DateLayout),
			FetchedAt: entry.FetchedAt.UnixMilli(),
			Data:      data,
		})
	if err != nil {
		log.Warn().Err(err).Str("key", entry.Key.String()).Msg("cache write failed")
	}
}

// Purge deletes entries fetched more than olderThan ago.
func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM market_data_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	log.Info().Msg("closing sqlite cache")
	return s.db.Close()
}
