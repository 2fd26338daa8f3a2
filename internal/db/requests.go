package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Vazhid/lezgian-tts/internal/models"
)

// CreateSynthesisRequest inserts a new durable request row with status
// "queued" and returns its id. The coordinator treats a failure here as
// best-effort: the job still runs, just without durable bookkeeping.
func (db *DB) CreateSynthesisRequest(ctx context.Context, userID int64, text, language string) (int64, error) {
	query := `
		INSERT INTO speech_synthesis_requests
			(user_id, input_text, status, create_dttm, language_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := db.QueryRowContext(ctx, query,
		userID, text, models.RequestStatusQueued, time.Now(), language,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	return id, nil
}

// MarkRequestProcessing stamps the processing start on a request.
func (db *DB) MarkRequestProcessing(ctx context.Context, id int64, startedAt time.Time) error {
	query := `
		UPDATE speech_synthesis_requests
		SET status = $1, processing_start_dttm = $2
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.RequestStatusProcessing, startedAt, id)
	return err
}

// MarkRequestFinished records a terminal status and the processing end time.
func (db *DB) MarkRequestFinished(ctx context.Context, id int64, status models.RequestStatus, endedAt time.Time) error {
	query := `
		UPDATE speech_synthesis_requests
		SET status = $1, processing_end_dttm = $2
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, status, endedAt, id)
	return err
}

// CreateSynthesisResult inserts the one immutable result row for a
// successfully synthesized request.
func (db *DB) CreateSynthesisResult(ctx context.Context, result *models.SynthesisResult) error {
	query := `
		INSERT INTO speech_synthesis_results
			(request_id, audio_file_path, duration_seconds, characters_processed)
		VALUES ($1, $2, $3, $4)
	`
	_, err := db.ExecContext(ctx, query,
		result.RequestID, result.AudioFilePath,
		result.DurationSeconds, result.CharactersProcessed,
	)
	if err != nil {
		return fmt.Errorf("failed to create synthesis result: %w", err)
	}
	return nil
}

// GetHistory returns the user's most recent requests joined with their
// results (when present), newest first.
func (db *DB) GetHistory(ctx context.Context, userID int64, limit int) ([]models.HistoryEntry, error) {
	query := `
		SELECT
			s.create_dttm, s.input_text, s.language_code, s.status,
			r.audio_file_path, r.duration_seconds
		FROM speech_synthesis_requests s
		LEFT JOIN speech_synthesis_results r ON s.id = r.request_id
		WHERE s.user_id = $1
		ORDER BY s.create_dttm DESC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		err := rows.Scan(
			&entry.Date, &entry.Text, &entry.Language, &entry.Status,
			&entry.AudioPath, &entry.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// HasAudioAccess reports whether a result row exists whose stored path
// matches and whose owning request belongs to the given user.
// Authorization is per-artifact, derived from ownership.
func (db *DB) HasAudioAccess(ctx context.Context, audioFilePath string, userID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM speech_synthesis_results res
			JOIN speech_synthesis_requests req ON res.request_id = req.id
			WHERE res.audio_file_path = $1 AND req.user_id = $2
		)
	`

	var authorized bool
	if err := db.QueryRowContext(ctx, query, audioFilePath, userID).Scan(&authorized); err != nil {
		return false, fmt.Errorf("failed to check audio access: %w", err)
	}
	return authorized, nil
}
