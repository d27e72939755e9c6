package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

const sessionColumns = `id, query, source, status, error_message, error_type, frame_count, result_preview, created_at, updated_at`

// ResearchRepository provides data access for the research session journal.
type ResearchRepository struct {
	db *sql.DB
}

// NewResearchRepository creates a new ResearchRepository.
func NewResearchRepository(db *sql.DB) *ResearchRepository {
	return &ResearchRepository{db: db}
}

// Create inserts a new session record.
func (r *ResearchRepository) Create(ctx context.Context, s *model.ResearchSession) error {
	query := `
		INSERT INTO research_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Query,
		s.Source,
		s.Status,
		nullString(s.ErrorMessage),
		nullString(s.ErrorType),
		s.FrameCount,
		nullString(s.ResultPreview),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create research session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *ResearchRepository) GetByID(ctx context.Context, id string) (*model.ResearchSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM research_sessions WHERE id = ?`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get research session: %w", err)
	}
	return s, nil
}

// List returns the most recent sessions first, optionally filtered by
// status. A non-positive limit means DefaultListLimit.
func (r *ResearchRepository) List(ctx context.Context, status model.SessionStatus, limit int) ([]*model.ResearchSession, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + sessionColumns + ` FROM research_sessions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list research sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.ResearchSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan research session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating research sessions: %w", err)
	}
	return sessions, nil
}

// UpdateOutcome stores the final status, error and counters of a session.
func (r *ResearchRepository) UpdateOutcome(ctx context.Context, s *model.ResearchSession) error {
	query := `
		UPDATE research_sessions
		SET status = ?, error_message = ?, error_type = ?, frame_count = ?, result_preview = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		s.Status,
		nullString(s.ErrorMessage),
		nullString(s.ErrorType),
		s.FrameCount,
		nullString(s.ResultPreview),
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update research session: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes a session record.
func (r *ResearchRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM research_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete research session: %w", err)
	}
	return expectOneRow(result)
}

// MarkInterrupted fails every session still marked running. Called at
// startup, since no session survives a restart.
func (r *ResearchRepository) MarkInterrupted(ctx context.Context, reason string) (int64, error) {
	query := `
		UPDATE research_sessions
		SET status = ?, error_message = ?, updated_at = ?
		WHERE status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		model.SessionStatusFailed, reason, time.Now().UTC(), model.SessionStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted sessions: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.ResearchSession, error) {
	s := &model.ResearchSession{}
	var errorMessage, errorType, preview sql.NullString

	err := row.Scan(
		&s.ID,
		&s.Query,
		&s.Source,
		&s.Status,
		&errorMessage,
		&errorType,
		&s.FrameCount,
		&preview,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ErrorMessage = errorMessage.String
	s.ErrorType = errorType.String
	s.ResultPreview = preview.String
	return s, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
