// Package extraction turns accepted verdicts into typed project and
// engineer records.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/mailsift/internal/content"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"go.uber.org/zap"
)

// ErrNotExtractable is returned for verdicts that are not an accepted
// project or engineer classification.
var ErrNotExtractable = errors.New("verdict is not eligible for extraction")

type Dispatcher interface {
	Call(ctx context.Context, task models.TaskType, payload provider.Payload) (provider.Response, error)
}

type Options struct {
	ConfidenceThreshold float64
	Bounds              content.Bounds
}

func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.7,
		Bounds:              content.Bounds{MaxLength: 8000, HeadLength: 6000, TailLength: 1500},
	}
}

// Input is the text a record is extracted from.
type Input struct {
	Text     string
	Source   models.ContentSource
	Filename string
}

type Orchestrator struct {
	dispatcher Dispatcher
	validator  *Validator
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrchestrator(dispatcher Dispatcher, validator *Validator, opts Options, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		dispatcher: dispatcher,
		validator:  validator,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Extract returns an error only when the verdict is not eligible. Provider
// and validation failures come back as a result with Valid set to false.
func (o *Orchestrator) Extract(ctx context.Context, v models.Verdict, in Input) (models.ExtractionResult, error) {
	kind, ok := models.RecordKindFor(v.Category)
	if !ok || v.Confidence < o.opts.ConfidenceThreshold {
		return models.ExtractionResult{}, fmt.Errorf("%w: category %s, confidence %.2f", ErrNotExtractable, v.Category, v.Confidence)
	}

	task := models.TaskExtraction
	if in.Source == models.SourceAttachment {
		task = models.TaskAttachment
	} else {
		in.Source = models.SourceBody
	}

	res := models.ExtractionResult{
		ID:        uuid.NewString(),
		MessageID: v.MessageID,
		Kind:      kind,
		Source:    in.Source,
		Filename:  in.Filename,
		CreatedAt: o.now(),
	}

	shaped := content.Shape(in.Text, o.opts.Bounds)
	resp, err := o.dispatcher.Call(ctx, task, provider.Payload{
		Content:  shaped.Text(),
		Kind:     kind,
		Filename: in.Filename,
	})
	if err != nil {
		o.logger.Error("Extraction failed",
			zap.String("message_id", v.MessageID),
			zap.String("kind", string(kind)),
			zap.String("source", string(in.Source)),
			zap.Error(err))
		res.Error = err.Error()
		return res, nil
	}
	res.Provider = resp.Provider
	res.FallbackUsed = resp.FallbackUsed

	fields := resp.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	if kind == models.KindEngineer && in.Filename != "" {
		if _, set := fields["source_filename"]; !set {
			fields["source_filename"] = in.Filename
		}
	}

	check := o.validator.Build(kind, fields, o.now())
	res.Record = check.Record
	res.MissingFields = check.MissingFields
	res.ValidationErrors = check.ValidationErrors
	res.Valid = check.Valid()

	if !res.Valid {
		o.logger.Warn("Extracted record is incomplete",
			zap.String("message_id", v.MessageID),
			zap.String("kind", string(kind)),
			zap.Strings("missing_fields", res.MissingFields),
			zap.Strings("validation_errors", res.ValidationErrors))
	}
	return res, nil
}
