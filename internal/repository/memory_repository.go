package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bai2-engine/internal/domain"
)

// MemoryConversionRepository keeps run history in process memory.
// It is safe for concurrent use; history is lost on restart.
type MemoryConversionRepository struct {
	mu     sync.RWMutex
	nextID int
	runs   map[string]*domain.ConversionRun
	now    func() time.Time
}

func NewMemoryConversionRepository() *MemoryConversionRepository {
	return &MemoryConversionRepository{
		runs: make(map[string]*domain.ConversionRun),
		now:  time.Now,
	}
}

func (m *MemoryConversionRepository) Create(run *domain.ConversionRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.RunID]; exists {
		return fmt.Errorf("conversion run %s already exists", run.RunID)
	}

	m.nextID++
	run.ID = m.nextID
	if run.CreatedAt.IsZero() {
		run.CreatedAt = m.now().UTC()
	}
	m.runs[run.RunID] = copyRun(run)
	return nil
}

func (m *MemoryConversionRepository) GetByRunID(runID string) (*domain.ConversionRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return copyRun(run), nil
}

func (m *MemoryConversionRepository) List(filter domain.RunFilter) ([]domain.ConversionRun, error) {
	m.mu.RLock()
	matched := make([]*domain.ConversionRun, 0, len(m.runs))
	for _, run := range m.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		matched = append(matched, run)
	}
	m.mu.RUnlock()

	// Newest first, the same order the database listing uses.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	runs := make([]domain.ConversionRun, 0)
	for i := offset; i < len(matched) && len(runs) < limit; i++ {
		runs = append(runs, *copyRun(matched[i]))
	}
	return runs, nil
}

func copyRun(run *domain.ConversionRun) *domain.ConversionRun {
	c := *run
	c.ErrorCodes = append([]domain.ErrorCode(nil), run.ErrorCodes...)
	c.Warnings = append([]string(nil), run.Warnings...)
	c.Output = append([]byte(nil), run.Output...)
	if run.ErrorMessage != nil {
		msg := *run.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}
