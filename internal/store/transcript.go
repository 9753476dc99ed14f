package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shanky048/WisePal/pkg/models"
)

// Transcript records messages appended during live chat sessions
type Transcript struct {
	db  *sql.DB
	now func() time.Time
}

// NewTranscript wraps an opened database (see db.Open)
func NewTranscript(db *sql.DB) *Transcript {
	return &Transcript{db: db, now: time.Now}
}

// Record appends a message to the transcript
func (t *Transcript) Record(ctx context.Context, msg models.Message) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO transcript (id, seq, role, content, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM transcript
	`, uuid.New().String(), string(msg.Role), msg.Content, t.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record transcript entry: %w", err)
	}
	return nil
}

// Recent returns the first and last window entries of the transcript in order,
// together with the number of entries omitted between them.
func (t *Transcript) Recent(ctx context.Context, window int) ([]models.TranscriptEntry, int, error) {
	if window <= 0 {
		return nil, 0, nil
	}

	rows, err := t.db.QueryContext(ctx, `
		WITH all_entries AS (
			SELECT
				id,
				seq,
				role,
				content,
				created_at,
				ROW_NUMBER() OVER (ORDER BY seq ASC) as row_num_asc,
				ROW_NUMBER() OVER (ORDER BY seq DESC) as row_num_desc,
				COUNT(*) OVER () as total_count
			FROM transcript
		)
		SELECT id, role, content, created_at, total_count
		FROM all_entries
		WHERE row_num_asc <= ? OR row_num_desc <= ?
		ORDER BY seq ASC
	`, window, window)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute transcript query: %w", err)
	}
	defer rows.Close()

	var entries []models.TranscriptEntry
	var total int64
	for rows.Next() {
		var entry models.TranscriptEntry
		var role string
		if err := rows.Scan(&entry.ID, &role, &entry.Content, &entry.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		entry.Role = models.Role(role)
		entry.CreatedAt = entry.CreatedAt.Local()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read transcript: %w", err)
	}

	return entries, int(total) - len(entries), nil
}

// Clear removes every transcript entry
func (t *Transcript) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM transcript"); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}
