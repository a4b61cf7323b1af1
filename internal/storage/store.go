package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// LLMCacheEntry is a cached product identification from the language model.
type LLMCacheEntry struct {
	ProductType  string
	Brand        string
	Model        string
	Attributes   string
	GoogleQuery  string
	AmazonQuery  string
	Insufficient bool
}

// PriceCacheEntry is a cached market price for a cleaned search query.
type PriceCacheEntry struct {
	Price     float64
	Source    string
	UpdatedAt time.Time
}

// Store defines the persistence used by the pipeline.
type Store interface {
	GetLLMCache(inputHash string) (*LLMCacheEntry, error)
	SetLLMCache(inputHash string, entry *LLMCacheEntry) error

	GetPriceCache(query string, maxAge time.Duration) (*PriceCacheEntry, error)
	SetPriceCache(query string, entry *PriceCacheEntry) error

	CreateRun(auctionURL string) (*Run, error)
	FinishRun(id string, total, skipped int, reportPath string) error
	RecordLot(runID string, lotNumber, itemURL string, marketPrice float64) error
	ListRuns(limit int) ([]Run, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based store.
// The dbPath is the path to the SQLite database file.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil {
		log.Debug().Err(err).Str("path", dbPath).Msg("failed to restrict database permissions")
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	llmCacheQuery := `
	CREATE TABLE IF NOT EXISTS llm_cache (
		input_hash TEXT PRIMARY KEY,
		product_type TEXT NOT NULL,
		brand TEXT NOT NULL,
		model TEXT NOT NULL,
		attributes TEXT,
		google_query TEXT,
		amazon_query TEXT,
		insufficient INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(llmCacheQuery); err != nil {
		return fmt.Errorf("failed to create llm_cache table: %w", err)
	}

	priceCacheQuery := `
	CREATE TABLE IF NOT EXISTS price_cache (
		query TEXT PRIMARY KEY,
		price REAL NOT NULL,
		source TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(priceCacheQuery); err != nil {
		return fmt.Errorf("failed to create price_cache table: %w", err)
	}

	runsQuery := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		auction_url TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		total_items INTEGER NOT NULL DEFAULT 0,
		skipped_items INTEGER NOT NULL DEFAULT 0,
		report_path TEXT
	);
	`
	if _, err := s.db.Exec(runsQuery); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	runLotsQuery := `
	CREATE TABLE IF NOT EXISTS run_lots (
		run_id TEXT NOT NULL,
		item_url TEXT NOT NULL,
		lot_number TEXT,
		market_price REAL NOT NULL DEFAULT 0,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, item_url),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	if _, err := s.db.Exec(runLotsQuery); err != nil {
		return fmt.Errorf("failed to create run_lots table: %w", err)
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetLLMCache retrieves a cached identification by input hash.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetLLMCache(inputHash string) (*LLMCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry LLMCacheEntry
	var attributes, googleQuery, amazonQuery sql.NullString
	err := s.db.QueryRow(
		`SELECT product_type, brand, model, attributes, google_query, amazon_query, insufficient
		FROM llm_cache WHERE input_hash = ?`,
		inputHash,
	).Scan(&entry.ProductType, &entry.Brand, &entry.Model, &attributes, &googleQuery, &amazonQuery, &entry.Insufficient)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query llm cache: %w", err)
	}

	entry.Attributes = attributes.String
	entry.GoogleQuery = googleQuery.String
	entry.AmazonQuery = amazonQuery.String
	return &entry, nil
}

// SetLLMCache stores an identification in the cache.
func (s *SQLiteStore) SetLLMCache(inputHash string, entry *LLMCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO llm_cache (input_hash, product_type, brand, model, attributes, google_query, amazon_query, insufficient)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(input_hash) DO UPDATE SET
			product_type = excluded.product_type,
			brand = excluded.brand,
			model = excluded.model,
			attributes = excluded.attributes,
			google_query = excluded.google_query,
			amazon_query = excluded.amazon_query,
			insufficient = excluded.insufficient,
			created_at = CURRENT_TIMESTAMP
	`, inputHash, entry.ProductType, entry.Brand, entry.Model, entry.Attributes, entry.GoogleQuery, entry.AmazonQuery, entry.Insufficient)

	if err != nil {
		return fmt.Errorf("failed to cache llm result: %w", err)
	}
	return nil
}

// GetPriceCache returns the cached price for query if it is newer than
// maxAge. A zero maxAge accepts any age. Returns nil, nil on a miss.
func (s *SQLiteStore) GetPriceCache(query string, maxAge time.Duration) (*PriceCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry PriceCacheEntry
	err := s.db.QueryRow(
		"SELECT price, source, updated_at FROM price_cache WHERE query = ?",
		query,
	).Scan(&entry.Price, &entry.Source, &entry.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price cache: %w", err)
	}
	if maxAge > 0 && time.Since(entry.UpdatedAt) > maxAge {
		return nil, nil
	}
	return &entry, nil
}

// SetPriceCache stores a price for query.
func (s *SQLiteStore) SetPriceCache(query string, entry *PriceCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := entry.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO price_cache (query, price, source, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			price = excluded.price,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, query, entry.Price, entry.Source, updated)

	if err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}
	return nil
}
