package observability

import (
	"strconv"

	"github.com/xaenox/mailsift/internal/models"
	"go.uber.org/zap"
)

// Recorder is the observability sink handed to the dispatcher, the
// classifier and the pipeline.
type Recorder struct {
	metrics *Metrics
	logger  *zap.Logger
}

func NewRecorder(metrics *Metrics, logger *zap.Logger) *Recorder {
	return &Recorder{metrics: metrics, logger: logger}
}

func (r *Recorder) ObserveAttempt(a models.DispatchAttempt) {
	r.metrics.Attempts.WithLabelValues(string(a.Task), a.Provider, string(a.Role), string(a.Outcome)).Inc()
	r.metrics.AttemptDuration.WithLabelValues(string(a.Task), a.Provider).Observe(a.Latency().Seconds())
}

func (r *Recorder) ObserveVerdict(v models.Verdict) {
	r.metrics.Verdicts.WithLabelValues(string(v.Category), string(v.Evidence.Source), strconv.FormatBool(v.FallbackUsed)).Inc()
	r.metrics.VerdictConfidence.WithLabelValues(string(v.Evidence.Source)).Observe(v.Confidence)
	r.logger.Info("Verdict",
		zap.String("message_id", v.MessageID),
		zap.String("category", string(v.Category)),
		zap.Float64("confidence", v.Confidence),
		zap.String("provider", v.Provider),
		zap.Bool("fallback_used", v.FallbackUsed))
}

func (r *Recorder) ObserveExtraction(res models.ExtractionResult) {
	r.metrics.Extractions.WithLabelValues(string(res.Kind), string(res.Source), strconv.FormatBool(res.Valid)).Inc()
}

func (r *Recorder) ObserveMessage(failed bool) {
	status := "processed"
	if failed {
		status = "failed"
	}
	r.metrics.Messages.WithLabelValues(status).Inc()
}
