package storage

import (
	"context"
	"sync"

	"github.com/xaenox/mailsift/internal/models"
)

type MemoryStorage struct {
	mu          sync.RWMutex
	verdicts    map[string]models.Verdict
	extractions map[string][]models.ExtractionResult
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		verdicts:    make(map[string]models.Verdict),
		extractions: make(map[string][]models.ExtractionResult),
	}
}

func (s *MemoryStorage) SaveOutcome(ctx context.Context, verdict models.Verdict, results []models.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verdicts[verdict.MessageID] = verdict
	if len(results) == 0 {
		delete(s.extractions, verdict.MessageID)
		return nil
	}
	s.extractions[verdict.MessageID] = append([]models.ExtractionResult(nil), results...)
	return nil
}

func (s *MemoryStorage) GetVerdict(ctx context.Context, messageID string) (*models.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verdicts[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStorage) ListExtractions(ctx context.Context, messageID string) ([]models.ExtractionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.ExtractionResult(nil), s.extractions[messageID]...), nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
