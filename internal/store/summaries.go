package store

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"time"

	"arklore/internal/logging"
)

// SaveSummary persists a generated commentary for an owner. The text is
// zlib-compressed at rest; token_count must have been computed with the
// same counter used for budget checks so selection and budgeting never
// drift apart.
func (s *Store) SaveSummary(ownerKey, text string, tokenCount int) (int64, error) {
	if tokenCount < 1 {
		return 0, fmt.Errorf("summary token_count must be >= 1, got %d", tokenCount)
	}

	compressed, err := compressText(text)
	if err != nil {
		return 0, fmt.Errorf("failed to compress summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		"INSERT INTO summaries (owner_key, summary, token_count) VALUES (?, ?, ?)",
		ownerKey, compressed, tokenCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save summary: %w", err)
	}
	id, _ := res.LastInsertId()
	logging.StoreDebug("saved summary id=%d owner=%s tokens=%d", id, ownerKey, tokenCount)
	return id, nil
}

// RecentSummaries returns up to n summaries for an owner, newest first.
func (s *Store) RecentSummaries(ownerKey string, n int) ([]Summary, error) {
	if n <= 0 {
		n = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(
		"SELECT id, owner_key, created_at, summary, token_count FROM summaries WHERE owner_key = ? ORDER BY id DESC LIMIT ?",
		ownerKey, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// SummariesUpToTokenLimit returns summaries for an owner in chronological
// order, greedily accepted newest-first until the running token sum would
// exceed tokenLimit. A single oversized summary yields an empty result
// rather than a budget overrun.
func (s *Store) SummariesUpToTokenLimit(ownerKey string, tokenLimit int) ([]Summary, error) {
	if tokenLimit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(
		"SELECT id, owner_key, created_at, summary, token_count FROM summaries WHERE owner_key = ? ORDER BY id DESC",
		ownerKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var selected []Summary
	total := 0
	for rows.Next() {
		rec, err := scanSummary(rows)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping unreadable summary: %v", err)
			continue
		}
		if total+rec.TokenCount > tokenLimit {
			break
		}
		// Prepend to keep chronological order.
		selected = append([]Summary{rec}, selected...)
		total += rec.TokenCount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logging.StoreDebug("selected %d summaries (%d tokens) for owner=%s limit=%d",
		len(selected), total, ownerKey, tokenLimit)
	return selected, nil
}

// SummaryStats describes the history available for one owner.
type SummaryStats struct {
	OwnerKey      string
	Total         int
	RecentWeek    int
	Earliest      time.Time
	Latest        time.Time
	CoverageDays  int
}

// SummaryStatistics reports how much history exists for an owner.
func (s *Store) SummaryStatistics(ownerKey string) (SummaryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SummaryStats{OwnerKey: ownerKey}
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM summaries WHERE owner_key = ?", ownerKey,
	).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("failed to count summaries: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -7)
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM summaries WHERE owner_key = ? AND created_at >= ?", ownerKey, cutoff,
	).Scan(&stats.RecentWeek); err != nil {
		return stats, fmt.Errorf("failed to count recent summaries: %w", err)
	}

	if stats.Total > 0 {
		// MIN/MAX expressions lose the column decltype, so the driver hands
		// them back as strings rather than time.Time.
		var earliest, latest string
		if err := s.db.QueryRow(
			"SELECT MIN(created_at), MAX(created_at) FROM summaries WHERE owner_key = ?", ownerKey,
		).Scan(&earliest, &latest); err != nil {
			return stats, fmt.Errorf("failed to query summary time range: %w", err)
		}
		stats.Earliest = parseStoredTime(earliest)
		stats.Latest = parseStoredTime(latest)
		if !stats.Earliest.IsZero() {
			stats.CoverageDays = int(time.Since(stats.Earliest).Hours() / 24)
		}
	}
	return stats, nil
}

// parseStoredTime decodes a timestamp string as sqlite stores it: the
// CURRENT_TIMESTAMP format, or the timezone-qualified form used for bound
// time.Time parameters.
func parseStoredTime(v string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
	} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// scanSummary reads one summary row, decompressing the text.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (Summary, error) {
	var rec Summary
	var blob []byte
	if err := row.Scan(&rec.ID, &rec.OwnerKey, &rec.Timestamp, &blob, &rec.TokenCount); err != nil {
		return rec, err
	}
	text, err := decompressText(blob)
	if err != nil {
		return rec, fmt.Errorf("failed to decompress summary %d: %w", rec.ID, err)
	}
	rec.Text = text
	return rec, nil
}

type summaryRows interface {
	rowScanner
	Next() bool
	Err() error
}

func scanSummaries(rows summaryRows) ([]Summary, error) {
	var out []Summary
	for rows.Next() {
		rec, err := scanSummary(rows)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping unreadable summary: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func compressText(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(text)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressText(blob []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
