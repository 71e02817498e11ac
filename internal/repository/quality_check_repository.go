package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
)

// QualityCheckRepository handles quality check data operations.
type QualityCheckRepository struct {
	db *database.DB
}

// NewQualityCheckRepository creates a new quality check repository.
func NewQualityCheckRepository(db *database.DB) *QualityCheckRepository {
	return &QualityCheckRepository{db: db}
}

// Create inserts a quality check.
func (r *QualityCheckRepository) Create(ctx context.Context, check *QualityCheck) error {
	checklistJSON, err := json.Marshal(check.Checklist)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal checklist")
	}

	query := `
		INSERT INTO quality_checks
		    (check_type, source_type, source_id, status, checklist)
		VALUES ($1::quality_check_type, $2::source_document_type, $3, $4::quality_check_status, $5)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		check.CheckType,
		check.SourceType,
		check.SourceID,
		check.Status,
		checklistJSON,
	).Scan(&check.ID, &check.CreatedAt, &check.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create quality check")
	}
	return nil
}

const qualityCheckColumns = `
	id, check_type, source_type, source_id, status, overall_result,
	checklist, inspected_by, completed_at, created_at, updated_at
`

// GetByID retrieves a quality check by primary key.
func (r *QualityCheckRepository) GetByID(ctx context.Context, id string) (*QualityCheck, error) {
	query := `SELECT ` + qualityCheckColumns + ` FROM quality_checks WHERE id = $1`

	check, err := r.scanCheck(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("quality_check", id)
	}
	return check, err
}

// GetOpenBySource returns the most recent non-completed check for a source
// document, or nil when none exists.
func (r *QualityCheckRepository) GetOpenBySource(ctx context.Context, sourceType SourceDocumentType, sourceID string) (*QualityCheck, error) {
	query := `
		SELECT ` + qualityCheckColumns + `
		FROM quality_checks
		WHERE source_type = $1::source_document_type
		  AND source_id = $2
		  AND status <> 'completed'
		ORDER BY created_at DESC
		LIMIT 1
	`

	check, err := r.scanCheck(r.db.QueryRow(ctx, query, sourceType, sourceID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return check, err
}

// List returns all quality checks, newest first.
func (r *QualityCheckRepository) List(ctx context.Context) ([]*QualityCheck, error) {
	query := `SELECT ` + qualityCheckColumns + ` FROM quality_checks ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list quality checks")
	}
	defer rows.Close()

	var checks []*QualityCheck
	for rows.Next() {
		check, err := r.scanCheck(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan quality check")
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

// UpdateProgress records checklist progress and moves the check to in_progress.
// Completed checks are terminal; the status guard is part of the UPDATE.
func (r *QualityCheckRepository) UpdateProgress(ctx context.Context, id string, checklist []ChecklistItem, inspectedBy string) error {
	checklistJSON, err := json.Marshal(checklist)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal checklist")
	}

	query := `
		UPDATE quality_checks
		SET status       = 'in_progress'::quality_check_status,
		    checklist    = $2,
		    inspected_by = $3,
		    updated_at   = NOW()
		WHERE id = $1 AND status <> 'completed'
		RETURNING id
	`

	var returnedID string
	err = r.db.QueryRow(ctx, query, id, checklistJSON, inspectedBy).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.Conflict("quality check is already completed")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update quality check progress")
	}
	return nil
}

// Complete finalizes a check with its verdict. Zero rows means the check was
// already completed (terminal) or does not exist.
func (r *QualityCheckRepository) Complete(ctx context.Context, id string, result QualityResult, checklist []ChecklistItem, inspectedBy string, completedAt time.Time) error {
	checklistJSON, err := json.Marshal(checklist)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal checklist")
	}

	query := `
		UPDATE quality_checks
		SET status         = 'completed'::quality_check_status,
		    overall_result = $2::quality_result,
		    checklist      = $3,
		    inspected_by   = $4,
		    completed_at   = $5,
		    updated_at     = NOW()
		WHERE id = $1 AND status <> 'completed'
		RETURNING id
	`

	var returnedID string
	err = r.db.QueryRow(ctx, query, id, result, checklistJSON, inspectedBy, completedAt).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.Conflict("quality check is already completed")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to complete quality check")
	}
	return nil
}

// ── scan helper ──────────────────────────────────────────────────────────────

type checkScanner interface {
	Scan(dest ...any) error
}

func (r *QualityCheckRepository) scanCheck(row checkScanner) (*QualityCheck, error) {
	check := &QualityCheck{}
	var checklistJSON []byte

	err := row.Scan(
		&check.ID,
		&check.CheckType,
		&check.SourceType,
		&check.SourceID,
		&check.Status,
		&check.OverallResult,
		&checklistJSON,
		&check.InspectedBy,
		&check.CompletedAt,
		&check.CreatedAt,
		&check.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(checklistJSON) > 0 {
		if err := json.Unmarshal(checklistJSON, &check.Checklist); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal checklist")
		}
	}
	return check, nil
}
