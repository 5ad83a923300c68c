package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xaenox/mailsift/internal/models"
)

var ErrNotFound = errors.New("not found")

// Storage persists the verdict and extraction results of a message, keyed
// by message id. Saving an outcome again replaces the previous one.
type Storage interface {
	SaveOutcome(ctx context.Context, verdict models.Verdict, results []models.ExtractionResult) error
	GetVerdict(ctx context.Context, messageID string) (*models.Verdict, error)
	ListExtractions(ctx context.Context, messageID string) ([]models.ExtractionResult, error)
	Close() error
}

// decodeRecord restores the typed record of a stored extraction.
func decodeRecord(kind models.RecordKind, data []byte) (models.Record, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var rec models.Record
	switch kind {
	case models.KindProject:
		rec = &models.ProjectRecord{}
	case models.KindEngineer:
		rec = &models.EngineerRecord{}
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("error decoding %s record: %w", kind, err)
	}
	return rec, nil
}
