package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mailsift/internal/content"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// project scores 5.0, engineer 1.0 with testTables
const projectHeavy = "案件募集 勤務地 開発 資格"

type fakeDispatcher struct {
	resp     provider.Response
	err      error
	calls    int
	payloads []provider.Payload
}

func (f *fakeDispatcher) Call(_ context.Context, task models.TaskType, p provider.Payload) (provider.Response, error) {
	f.calls++
	f.payloads = append(f.payloads, p)
	if task != models.TaskClassification {
		return provider.Response{}, errors.New("unexpected task")
	}
	return f.resp, f.err
}

type verdictSpy struct{ verdicts []models.Verdict }

func (s *verdictSpy) ObserveVerdict(v models.Verdict) { s.verdicts = append(s.verdicts, v) }

func conf(f float64) *float64 { return &f }

func newTestClassifier(t *testing.T, d Dispatcher, opts Options) (*ConfidenceClassifier, *verdictSpy) {
	t.Helper()
	spy := &verdictSpy{}
	return NewConfidenceClassifier(newTestScorer(t), d, opts, spy, zap.NewNop()), spy
}

func TestClassifyAgreementBoost(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryProject, Confidence: conf(0.6), Provider: "openai"}}
	c, spy := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{ID: "m1", Body: projectHeavy})

	assert.Equal(t, models.CategoryProject, v.Category)
	assert.InDelta(t, 0.8, v.Confidence, 1e-9)
	assert.True(t, v.Evidence.Boosted)
	assert.Equal(t, models.SourceAIFused, v.Evidence.Source)
	assert.Equal(t, "openai", v.Provider)
	assert.Equal(t, "m1", v.MessageID)
	require.Len(t, spy.verdicts, 1)
	assert.Equal(t, v, spy.verdicts[0])
}

func TestClassifyDisagreementNoBoost(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryEngineer, Confidence: conf(0.9), Provider: "openai"}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{ID: "m2", Body: projectHeavy})

	assert.Equal(t, models.CategoryEngineer, v.Category)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.False(t, v.Evidence.Boosted)
}

func TestClassifyProviderFailureBelowThreshold(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("all providers timed out")}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{ID: "m3", Body: projectHeavy})

	assert.Equal(t, models.CategoryUnclassified, v.Category)
	assert.InDelta(t, 0.5, v.Confidence, 1e-9)
	assert.Equal(t, models.CategoryProject, v.Evidence.ComputedCategory)
	assert.Equal(t, models.SourceKeywordOnly, v.Evidence.Source)
	assert.Contains(t, v.Evidence.ProviderError, "timed out")
	assert.Empty(t, v.Provider)
}

func TestClassifyProviderFailureNeverAboveCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.ConfidenceThreshold = 0.4
	d := &fakeDispatcher{err: errors.New("boom")}
	c, _ := newTestClassifier(t, d, opts)

	for _, body := range []string{projectHeavy, "要員ご紹介", "", "案件募集 要員ご紹介", "セミナー"} {
		v := c.Classify(context.Background(), models.Message{Body: body})
		assert.LessOrEqual(t, v.Confidence, opts.HeuristicCeiling, body)
	}

	v := c.Classify(context.Background(), models.Message{Body: projectHeavy})
	assert.Equal(t, models.CategoryProject, v.Category)

	// tie between project and engineer
	v = c.Classify(context.Background(), models.Message{Body: "案件募集 要員ご紹介"})
	assert.Equal(t, models.CategoryUnclassified, v.Category)
	assert.Equal(t, models.CategoryUnclassified, v.Evidence.ComputedCategory)
	assert.Zero(t, v.Confidence)
}

func TestClassifySpamOverride(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryProject, Confidence: conf(1.0)}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{Subject: "広告", Body: projectHeavy + " セール"})

	assert.Equal(t, models.CategoryUnclassified, v.Category)
	assert.InDelta(t, 0.95, v.Confidence, 1e-9)
	assert.Equal(t, models.SourceSpamOverride, v.Evidence.Source)
	assert.Zero(t, d.calls)
	assert.Empty(t, v.Evidence.AILabel)
}

func TestClassifySuspiciousSenderOverride(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryProject, Confidence: conf(1.0)}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{Sender: "Shop <noreply@shop.example.com>", Body: projectHeavy})

	assert.Equal(t, models.CategoryUnclassified, v.Category)
	assert.Equal(t, models.SourceSpamOverride, v.Evidence.Source)
	assert.True(t, v.Evidence.Keyword.SuspiciousSender)
	assert.Zero(t, v.Evidence.Keyword.SpamHits)
	assert.Zero(t, d.calls)
}

func TestClassifyRecruitingSenderTipsAgreement(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryEngineer, Confidence: conf(0.6)}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	// engineer scores 1.0 from the body alone and loses to project
	msg := models.Message{Body: "勤務地 資格 学歴"}
	v := c.Classify(context.Background(), msg)
	assert.False(t, v.Evidence.Boosted)
	assert.Equal(t, models.CategoryUnclassified, v.Category)

	msg.Sender = "sato@recruit-partners.jp"
	v = c.Classify(context.Background(), msg)
	assert.True(t, v.Evidence.Keyword.RecruitingSender)
	assert.True(t, v.Evidence.Boosted)
	assert.Equal(t, models.CategoryEngineer, v.Category)
	assert.InDelta(t, 0.8, v.Confidence, 1e-9)
}

func TestClassifyScoresAttachmentText(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryEngineer}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{
		Body: "添付をご確認ください",
		Attachments: []models.Attachment{
			{Filename: "経歴.txt", Text: "要員ご紹介 資格"},
			{Filename: "履歴書.pdf"},
		},
	})

	assert.InDelta(t, 6.5, v.Evidence.Keyword.Scores[models.CategoryEngineer], 1e-9)
	assert.Equal(t, []string{"履歴書.pdf"}, v.Evidence.Keyword.ResumeFiles)
	assert.Equal(t, models.CategoryEngineer, v.Category)
	require.Len(t, d.payloads, 1)
	assert.Contains(t, d.payloads[0].Content, "要員ご紹介 資格")
}

func TestClassifyThresholdKeepsEvidence(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryEngineer, Confidence: conf(0.55), Reasoning: "resume"}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{Body: projectHeavy})

	assert.Equal(t, models.CategoryUnclassified, v.Category)
	assert.InDelta(t, 0.55, v.Confidence, 1e-9)
	assert.Equal(t, models.CategoryEngineer, v.Evidence.ComputedCategory)
	assert.InDelta(t, 0.55, v.Evidence.ComputedConfidence, 1e-9)
	assert.Equal(t, "resume", v.Evidence.Reasoning)
}

func TestClassifyDefaultAIConfidence(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryOther}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{Body: "no keywords at all"})
	// no keyword evidence: default confidence, no boost
	assert.InDelta(t, 0.6, v.Confidence, 1e-9)
	assert.False(t, v.Evidence.Boosted)
	assert.Equal(t, models.CategoryUnclassified, v.Category)

	v = c.Classify(context.Background(), models.Message{Body: "技術セミナーのお知らせ"})
	assert.InDelta(t, 0.8, v.Confidence, 1e-9)
	assert.Equal(t, models.CategoryOther, v.Category)
}

func TestClassifyBoostCapped(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryProject, Confidence: conf(0.95)}}
	c, _ := newTestClassifier(t, d, DefaultOptions())

	v := c.Classify(context.Background(), models.Message{Body: projectHeavy})
	assert.Equal(t, 1.0, v.Confidence)
}

func TestClassifyShapesContent(t *testing.T) {
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryOther, Confidence: conf(0.9)}}
	opts := DefaultOptions()
	opts.Bounds = content.Bounds{MaxLength: 100, HeadLength: 40, TailLength: 20}
	c, _ := newTestClassifier(t, d, opts)

	v := c.Classify(context.Background(), models.Message{Body: strings.Repeat("あ", 500)})
	assert.True(t, v.Evidence.Truncated)
	require.Len(t, d.payloads, 1)
	assert.Contains(t, d.payloads[0].Content, content.Marker)
}

func TestClassifyVerboseLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := DefaultOptions()
	opts.Verbose = true
	d := &fakeDispatcher{resp: provider.Response{Label: models.CategoryProject, Confidence: conf(0.6)}}
	c := NewConfidenceClassifier(newTestScorer(t), d, opts, nil, zap.New(core))

	c.Classify(context.Background(), models.Message{ID: "m9", Body: projectHeavy})

	entries := logs.FilterMessage("Classified message").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "m9", fields["message_id"])
	assert.Equal(t, true, fields["boosted"])
	assert.Contains(t, fields, "keyword_scores")
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	opts := DefaultOptions()
	opts.ConfidenceThreshold = 1.2
	assert.Error(t, opts.Validate())

	opts = DefaultOptions()
	opts.Bounds.HeadLength = 5000
	assert.Error(t, opts.Validate())
}
