package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// QualityCheckRepository is an in-memory QualityCheckStore.
type QualityCheckRepository struct {
	mu     sync.RWMutex
	checks map[string]*repository.QualityCheck
}

// NewQualityCheckRepository creates an empty in-memory store.
func NewQualityCheckRepository() *QualityCheckRepository {
	return &QualityCheckRepository{checks: make(map[string]*repository.QualityCheck)}
}

// Create stores the check, assigning id and timestamps.
func (r *QualityCheckRepository) Create(_ context.Context, check *repository.QualityCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	check.ID = uuid.NewString()
	now := time.Now()
	check.CreatedAt = now
	check.UpdatedAt = now
	r.checks[check.ID] = cloneQualityCheck(check)
	return nil
}

// GetByID returns a copy of the stored check.
func (r *QualityCheckRepository) GetByID(_ context.Context, id string) (*repository.QualityCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	check, ok := r.checks[id]
	if !ok {
		return nil, errors.NotFound("quality_check", id)
	}
	return cloneQualityCheck(check), nil
}

// GetOpenBySource returns the most recent non-completed check for a source
// document, or nil.
func (r *QualityCheckRepository) GetOpenBySource(_ context.Context, sourceType repository.SourceDocumentType, sourceID string) (*repository.QualityCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *repository.QualityCheck
	for _, check := range r.checks {
		if check.SourceType != sourceType || check.SourceID != sourceID || check.Status == repository.CheckCompleted {
			continue
		}
		if latest == nil || check.CreatedAt.After(latest.CreatedAt) {
			latest = check
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneQualityCheck(latest), nil
}

// List returns all checks, newest first.
func (r *QualityCheckRepository) List(_ context.Context) ([]*repository.QualityCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.QualityCheck
	for _, check := range r.checks {
		out = append(out, cloneQualityCheck(check))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateProgress records checklist progress; completed checks are terminal.
func (r *QualityCheckRepository) UpdateProgress(_ context.Context, id string, checklist []repository.ChecklistItem, inspectedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	check, ok := r.checks[id]
	if !ok || check.Status == repository.CheckCompleted {
		return errors.Conflict("quality check is already completed")
	}
	check.Status = repository.CheckInProgress
	check.Checklist = append([]repository.ChecklistItem(nil), checklist...)
	check.InspectedBy = &inspectedBy
	check.UpdatedAt = time.Now()
	return nil
}

// Complete finalizes a check; completed checks are terminal.
func (r *QualityCheckRepository) Complete(_ context.Context, id string, result repository.QualityResult, checklist []repository.ChecklistItem, inspectedBy string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	check, ok := r.checks[id]
	if !ok || check.Status == repository.CheckCompleted {
		return errors.Conflict("quality check is already completed")
	}
	check.Status = repository.CheckCompleted
	check.OverallResult = &result
	check.Checklist = append([]repository.ChecklistItem(nil), checklist...)
	check.InspectedBy = &inspectedBy
	check.CompletedAt = &completedAt
	check.UpdatedAt = time.Now()
	return nil
}

func cloneQualityCheck(check *repository.QualityCheck) *repository.QualityCheck {
	c := *check
	c.Checklist = append([]repository.ChecklistItem(nil), check.Checklist...)
	return &c
}
