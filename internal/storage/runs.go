package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one pipeline execution against an auction listing.
type Run struct {
	ID           string
	AuctionURL   string
	StartedAt    time.Time
	FinishedAt   time.Time
	TotalItems   int
	SkippedItems int
	ReportPath   string
}

// CreateRun records the start of a run and returns it with a fresh ID.
func (s *SQLiteStore) CreateRun(auctionURL string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &Run{
		ID:         uuid.New().String(),
		AuctionURL: auctionURL,
		StartedAt:  time.Now(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, auction_url, started_at) VALUES (?, ?, ?)`,
		run.ID, run.AuctionURL, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun stores the outcome of a run.
func (s *SQLiteStore) FinishRun(id string, total, skipped int, reportPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, total_items = ?, skipped_items = ?, report_path = ? WHERE id = ?`,
		time.Now(), total, skipped, reportPath, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found")
	}
	return nil
}

// RecordLot stores a priced lot for a run. Recording the same URL twice
// keeps the latest price.
func (s *SQLiteStore) RecordLot(runID string, lotNumber, itemURL string, marketPrice float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO run_lots (run_id, item_url, lot_number, market_price, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, item_url) DO UPDATE SET
			lot_number = excluded.lot_number,
			market_price = excluded.market_price,
			recorded_at = excluded.recorded_at
	`, runID, itemURL, lotNumber, marketPrice, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record lot: %w", err)
	}
	return nil
}

// CountLots returns the number of lots recorded for a run.
func (s *SQLiteStore) CountLots(runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM run_lots WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lots: %w", err)
	}
	return count, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, auction_url, started_at, finished_at, total_items, skipped_items, report_path
		FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		var report sql.NullString
		if err := rows.Scan(&r.ID, &r.AuctionURL, &r.StartedAt, &finished, &r.TotalItems, &r.SkippedItems, &report); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.FinishedAt = finished.Time
		r.ReportPath = report.String
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
