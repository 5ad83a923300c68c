package classifier

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xaenox/mailsift/internal/content"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"go.uber.org/zap"
)

// Dispatcher sends a task to the configured providers.
type Dispatcher interface {
	Call(ctx context.Context, task models.TaskType, payload provider.Payload) (provider.Response, error)
}

// VerdictObserver receives every verdict produced.
type VerdictObserver interface {
	ObserveVerdict(v models.Verdict)
}

// Options are the fusion tuning constants.
type Options struct {
	ConfidenceThreshold float64
	AgreementBoost      float64
	DefaultAIConfidence float64
	HeuristicCeiling    float64
	SpamOverridePenalty float64
	Bounds              content.Bounds
	Verbose             bool
}

func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.7,
		AgreementBoost:      0.2,
		DefaultAIConfidence: 0.6,
		HeuristicCeiling:    0.5,
		SpamOverridePenalty: 0.05,
		Bounds:              content.Bounds{MaxLength: 2000, HeadLength: 800, TailLength: 300},
	}
}

func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"confidence_threshold":  o.ConfidenceThreshold,
		"agreement_boost":       o.AgreementBoost,
		"default_ai_confidence": o.DefaultAIConfidence,
		"heuristic_ceiling":     o.HeuristicCeiling,
		"spam_override_penalty": o.SpamOverridePenalty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	return o.Bounds.Validate()
}

// ConfidenceClassifier fuses the keyword signal with the provider label.
type ConfidenceClassifier struct {
	scorer     *Scorer
	dispatcher Dispatcher
	opts       Options
	observer   VerdictObserver
	logger     *zap.Logger
	now        func() time.Time
}

func NewConfidenceClassifier(scorer *Scorer, dispatcher Dispatcher, opts Options, observer VerdictObserver, logger *zap.Logger) *ConfidenceClassifier {
	return &ConfidenceClassifier{
		scorer:     scorer,
		dispatcher: dispatcher,
		opts:       opts,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
}

// Classify always returns a verdict. Provider failures degrade to the
// keyword signal.
func (c *ConfidenceClassifier) Classify(ctx context.Context, msg models.Message) models.Verdict {
	shaped := content.Shape(msg.FullText(), c.opts.Bounds)
	signal := c.scorer.ScoreMessage(Input{
		Text:      shaped.Text(),
		Sender:    msg.Sender,
		Filenames: msg.Filenames(),
	})

	v := models.Verdict{
		MessageID: msg.ID,
		CreatedAt: c.now(),
		Evidence: models.Evidence{
			Keyword:   signal,
			Truncated: shaped.Truncated,
		},
	}

	switch {
	case signal.SpamOverride:
		v.Evidence.Source = models.SourceSpamOverride
		v.Evidence.ComputedCategory = models.CategoryUnclassified
		v.Evidence.ComputedConfidence = 1.0 - c.opts.SpamOverridePenalty

	default:
		resp, err := c.dispatcher.Call(ctx, models.TaskClassification, provider.Payload{Content: shaped.Text()})
		if err != nil {
			c.logger.Warn("Classification providers failed, using keywords",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			c.keywordOnly(&v, signal, err)
		} else {
			c.fuse(&v, signal, resp)
		}
	}

	v.Category = v.Evidence.ComputedCategory
	v.Confidence = v.Evidence.ComputedConfidence
	if v.Confidence < c.opts.ConfidenceThreshold {
		v.Category = models.CategoryUnclassified
	}

	c.log(v)
	if c.observer != nil {
		c.observer.ObserveVerdict(v)
	}
	return v
}

func (c *ConfidenceClassifier) fuse(v *models.Verdict, signal models.KeywordSignal, resp provider.Response) {
	v.Provider = resp.Provider
	v.FallbackUsed = resp.FallbackUsed
	v.Evidence.Source = models.SourceAIFused
	v.Evidence.AILabel = resp.Label
	v.Evidence.AIConfidence = resp.Confidence
	v.Evidence.Reasoning = resp.Reasoning
	v.Evidence.ComputedCategory = resp.Label

	confidence := c.opts.DefaultAIConfidence
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}
	if top := signal.MaxScore(); top > 0 && signal.Scores[resp.Label] == top {
		confidence = math.Min(1.0, confidence+c.opts.AgreementBoost)
		v.Evidence.Boosted = true
	}
	v.Evidence.ComputedConfidence = confidence
}

func (c *ConfidenceClassifier) keywordOnly(v *models.Verdict, signal models.KeywordSignal, err error) {
	v.Evidence.Source = models.SourceKeywordOnly
	v.Evidence.ProviderError = err.Error()
	v.Evidence.ComputedCategory = signal.TopCategory()
	if v.Evidence.ComputedCategory == models.CategoryUnclassified {
		v.Evidence.ComputedConfidence = 0
		return
	}
	v.Evidence.ComputedConfidence = c.opts.HeuristicCeiling
}

func (c *ConfidenceClassifier) log(v models.Verdict) {
	fields := []zap.Field{
		zap.String("message_id", v.MessageID),
		zap.String("category", string(v.Category)),
		zap.Float64("confidence", v.Confidence),
		zap.String("source", string(v.Evidence.Source)),
		zap.String("provider", v.Provider),
		zap.Bool("fallback_used", v.FallbackUsed),
	}
	if !c.opts.Verbose {
		c.logger.Debug("Classified message", fields...)
		return
	}
	fields = append(fields,
		zap.String("computed_category", string(v.Evidence.ComputedCategory)),
		zap.Float64("computed_confidence", v.Evidence.ComputedConfidence),
		zap.String("ai_label", string(v.Evidence.AILabel)),
		zap.Bool("boosted", v.Evidence.Boosted),
		zap.Any("keyword_scores", v.Evidence.Keyword.Scores),
		zap.Any("matched_keywords", v.Evidence.Keyword.Matched),
		zap.Int("spam_hits", v.Evidence.Keyword.SpamHits),
		zap.Bool("suspicious_sender", v.Evidence.Keyword.SuspiciousSender),
		zap.Bool("recruiting_sender", v.Evidence.Keyword.RecruitingSender),
		zap.Strings("resume_files", v.Evidence.Keyword.ResumeFiles),
		zap.Bool("truncated", v.Evidence.Truncated),
		zap.String("reasoning", v.Evidence.Reasoning),
	)
	c.logger.Info("Classified message", fields...)
}
