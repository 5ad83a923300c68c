// Package pipeline runs messages through classification, extraction,
// persistence and review notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/mailsift/internal/attachment"
	"github.com/xaenox/mailsift/internal/extraction"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/notify"
	"github.com/xaenox/mailsift/internal/storage"
	"go.uber.org/zap"
)

type Classifier interface {
	Classify(ctx context.Context, msg models.Message) models.Verdict
}

type Extractor interface {
	Extract(ctx context.Context, v models.Verdict, in extraction.Input) (models.ExtractionResult, error)
}

type Observer interface {
	ObserveExtraction(res models.ExtractionResult)
	ObserveMessage(failed bool)
}

type Processor struct {
	classifier  Classifier
	extractor   Extractor
	attachments attachment.Extractor
	store       storage.Storage
	notifier    notify.Notifier
	observer    Observer
	logger      *zap.Logger
}

func NewProcessor(
	classifier Classifier,
	extractor Extractor,
	attachments attachment.Extractor,
	store storage.Storage,
	notifier notify.Notifier,
	observer Observer,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		classifier:  classifier,
		extractor:   extractor,
		attachments: attachments,
		store:       store,
		notifier:    notifier,
		observer:    observer,
		logger:      logger,
	}
}

// Process reads the attachments, classifies msg, extracts records when the
// verdict is an accepted project or engineer category, and persists the
// outcome. Only a persistence failure is returned as an error.
func (p *Processor) Process(ctx context.Context, msg models.Message) (models.Outcome, error) {
	msg.Attachments = p.readAttachments(ctx, msg)
	out := models.Outcome{Message: msg}
	out.Verdict = p.classifier.Classify(ctx, msg)

	if out.Verdict.Category.Extractable() {
		out.Extractions = p.extract(ctx, msg, out.Verdict)
	}

	if err := p.store.SaveOutcome(ctx, out.Verdict, out.Extractions); err != nil {
		p.observe(out, true)
		return out, fmt.Errorf("save outcome of %s: %w", msg.ID, err)
	}

	for _, res := range out.Extractions {
		if res.Valid {
			continue
		}
		if err := p.notifier.NotifyReview(ctx, msg, out.Verdict, res); err != nil {
			p.logger.Warn("Review notification failed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}

	p.observe(out, false)
	return out, nil
}

// readAttachments returns a copy of the attachments with their text filled
// in. Unreadable attachments keep an empty text.
func (p *Processor) readAttachments(ctx context.Context, msg models.Message) []models.Attachment {
	if len(msg.Attachments) == 0 {
		return msg.Attachments
	}
	read := make([]models.Attachment, len(msg.Attachments))
	for i, a := range msg.Attachments {
		text, err := p.attachments.Extract(ctx, a)
		switch {
		case errors.Is(err, attachment.ErrUnsupportedFormat):
			p.logger.Debug("Skipping attachment",
				zap.String("message_id", msg.ID),
				zap.String("filename", a.Filename),
				zap.Error(err))
		case err != nil:
			p.logger.Warn("Attachment text extraction failed",
				zap.String("message_id", msg.ID),
				zap.String("filename", a.Filename),
				zap.Error(err))
		default:
			a.Text = text
		}
		read[i] = a
	}
	return read
}

func (p *Processor) extract(ctx context.Context, msg models.Message, v models.Verdict) []models.ExtractionResult {
	inputs := []extraction.Input{{Text: msg.Text(), Source: models.SourceBody}}

	for _, a := range msg.Attachments {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		inputs = append(inputs, extraction.Input{Text: a.Text, Source: models.SourceAttachment, Filename: a.Filename})
	}

	results := make([]models.ExtractionResult, 0, len(inputs))
	for _, in := range inputs {
		res, err := p.extractor.Extract(ctx, v, in)
		if err != nil {
			p.logger.Error("Extraction refused",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

func (p *Processor) observe(out models.Outcome, failed bool) {
	if p.observer == nil {
		return
	}
	for _, res := range out.Extractions {
		p.observer.ObserveExtraction(res)
	}
	p.observer.ObserveMessage(failed)
}
