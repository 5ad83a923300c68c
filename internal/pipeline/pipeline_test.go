package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mailsift/internal/attachment"
	"github.com/xaenox/mailsift/internal/classifier"
	"github.com/xaenox/mailsift/internal/extraction"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"github.com/xaenox/mailsift/internal/storage"
	"go.uber.org/zap"
)

type fakeClassifier struct {
	category models.Category
}

func (f fakeClassifier) Classify(_ context.Context, msg models.Message) models.Verdict {
	return models.Verdict{MessageID: msg.ID, Category: f.category, Confidence: 0.9}
}

type fakeExtractor struct {
	mu     sync.Mutex
	inputs []extraction.Input
	valid  bool
}

func (f *fakeExtractor) Extract(_ context.Context, v models.Verdict, in extraction.Input) (models.ExtractionResult, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	res := models.ExtractionResult{
		MessageID: v.MessageID,
		Kind:      models.KindProject,
		Source:    in.Source,
		Filename:  in.Filename,
		Valid:     f.valid,
	}
	if !f.valid {
		res.MissingFields = []string{"title"}
	}
	return res, nil
}

type fakeAttachments map[string]error

func (f fakeAttachments) Extract(_ context.Context, a models.Attachment) (string, error) {
	if err := f[a.Filename]; err != nil {
		return "", err
	}
	return string(a.Data), nil
}

type spyNotifier struct {
	mu    sync.Mutex
	calls int
}

func (s *spyNotifier) NotifyReview(context.Context, models.Message, models.Verdict, models.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

type failingStore struct {
	storage.Storage
}

func (failingStore) SaveOutcome(context.Context, models.Verdict, []models.ExtractionResult) error {
	return errors.New("connection refused")
}

type harness struct {
	extractor *fakeExtractor
	notifier  *spyNotifier
	store     *storage.MemoryStorage
	processor *Processor
}

func newHarness(category models.Category, valid bool) *harness {
	h := &harness{
		extractor: &fakeExtractor{valid: valid},
		notifier:  &spyNotifier{},
		store:     storage.NewMemoryStorage(),
	}
	attachments := fakeAttachments{"photo.png": attachment.ErrUnsupportedFormat}
	h.processor = NewProcessor(fakeClassifier{category: category}, h.extractor, attachments, h.store, h.notifier, nil, zap.NewNop())
	return h
}

func TestProcessExtractsBodyAndAttachments(t *testing.T) {
	h := newHarness(models.CategoryProject, true)
	msg := models.Message{
		ID:      "m1",
		Subject: "案件",
		Body:    "Java開発",
		Attachments: []models.Attachment{
			{Filename: "detail.txt", Data: []byte("詳細")},
			{Filename: "photo.png", Data: []byte{0x89}},
			{Filename: "blank.txt", Data: []byte("  \n")},
		},
	}

	out, err := h.processor.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, out.Extractions, 2)

	assert.Equal(t, models.SourceBody, h.extractor.inputs[0].Source)
	assert.Equal(t, "案件\n\nJava開発", h.extractor.inputs[0].Text)
	assert.Equal(t, models.SourceAttachment, h.extractor.inputs[1].Source)
	assert.Equal(t, "detail.txt", h.extractor.inputs[1].Filename)

	saved, err := h.store.ListExtractions(context.Background(), "m1")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	assert.Zero(t, h.notifier.calls)
}

type labelDispatcher struct {
	label    models.Category
	payloads []provider.Payload
}

func (d *labelDispatcher) Call(_ context.Context, _ models.TaskType, p provider.Payload) (provider.Response, error) {
	d.payloads = append(d.payloads, p)
	return provider.Response{Provider: "openai", Label: d.label}, nil
}

func TestProcessClassifiesWithAttachments(t *testing.T) {
	scorer, err := classifier.NewScorer(classifier.DefaultTables(), classifier.DefaultWeights(), 2)
	require.NoError(t, err)

	newProcessor := func(h *harness, d *labelDispatcher) *Processor {
		c := classifier.NewConfidenceClassifier(scorer, d, classifier.DefaultOptions(), nil, zap.NewNop())
		attachments := fakeAttachments{"スキルシート_山田.xlsx": attachment.ErrUnsupportedFormat}
		return NewProcessor(c, h.extractor, attachments, h.store, h.notifier, nil, zap.NewNop())
	}
	body := models.Message{ID: "m5", Body: "添付をご確認ください"}

	t.Run("body alone", func(t *testing.T) {
		h := newHarness(models.CategoryOther, true)
		p := newProcessor(h, &labelDispatcher{label: models.CategoryEngineer})

		out, err := p.Process(context.Background(), body)
		require.NoError(t, err)
		assert.Equal(t, models.CategoryUnclassified, out.Verdict.Category)
		assert.False(t, out.Verdict.Evidence.Boosted)
		assert.Empty(t, out.Extractions)
	})

	t.Run("skill sheet attached", func(t *testing.T) {
		h := newHarness(models.CategoryOther, true)
		d := &labelDispatcher{label: models.CategoryEngineer}
		p := newProcessor(h, d)

		msg := body
		msg.Attachments = []models.Attachment{
			{Filename: "スキルシート_山田.xlsx", Data: []byte{0x50, 0x4b}},
			{Filename: "profile.txt", Data: []byte("氏名: 山田 太郎\n経験年数: 8年\n日本語レベル: ネイティブ")},
		}

		out, err := p.Process(context.Background(), msg)
		require.NoError(t, err)

		v := out.Verdict
		assert.Equal(t, models.CategoryEngineer, v.Category)
		assert.Equal(t, models.SourceAIFused, v.Evidence.Source)
		assert.True(t, v.Evidence.Boosted)
		assert.InDelta(t, 0.8, v.Confidence, 1e-9)
		assert.Equal(t, []string{"スキルシート_山田.xlsx"}, v.Evidence.Keyword.ResumeFiles)
		assert.Contains(t, v.Evidence.Keyword.Matched[models.CategoryEngineer], "経験年数")

		require.Len(t, d.payloads, 1)
		assert.Contains(t, d.payloads[0].Content, "日本語レベル: ネイティブ")

		require.Len(t, h.extractor.inputs, 2)
		assert.Equal(t, models.SourceBody, h.extractor.inputs[0].Source)
		assert.Equal(t, "profile.txt", h.extractor.inputs[1].Filename)
	})
}

func TestProcessSkipsExtractionForNonExtractableCategories(t *testing.T) {
	for _, cat := range []models.Category{models.CategoryOther, models.CategoryUnclassified} {
		t.Run(string(cat), func(t *testing.T) {
			h := newHarness(cat, true)
			out, err := h.processor.Process(context.Background(), models.Message{ID: "m2", Body: "セミナーのご案内"})
			require.NoError(t, err)

			assert.Empty(t, out.Extractions)
			assert.Empty(t, h.extractor.inputs)

			v, err := h.store.GetVerdict(context.Background(), "m2")
			require.NoError(t, err)
			assert.Equal(t, cat, v.Category)
		})
	}
}

func TestProcessNotifiesInvalidResults(t *testing.T) {
	h := newHarness(models.CategoryProject, false)
	_, err := h.processor.Process(context.Background(), models.Message{ID: "m3", Body: "案件"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.notifier.calls)
}

func TestProcessReturnsStorageError(t *testing.T) {
	h := newHarness(models.CategoryProject, false)
	h.processor.store = failingStore{}

	_, err := h.processor.Process(context.Background(), models.Message{ID: "m4", Body: "案件"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m4")
	assert.Zero(t, h.notifier.calls)
}

func TestRunBatchFinishesAfterCancel(t *testing.T) {
	h := newHarness(models.CategoryProject, true)
	w := NewWorker(nil, h.processor, WorkerConfig{Concurrency: 2}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs := []models.Message{{ID: "a", Body: "x"}, {ID: "b", Body: "y"}, {ID: "c", Body: "z"}}
	res := w.RunBatch(ctx, msgs)
	assert.Equal(t, BatchResult{Processed: 3}, res)

	for _, m := range msgs {
		_, err := h.store.GetVerdict(context.Background(), m.ID)
		assert.NoError(t, err)
	}
}

func TestRunBatchCountsFailures(t *testing.T) {
	h := newHarness(models.CategoryOther, true)
	h.processor.store = failingStore{}
	w := NewWorker(nil, h.processor, WorkerConfig{}, zap.NewNop())

	res := w.RunBatch(context.Background(), []models.Message{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, BatchResult{Failed: 2}, res)
}

type sliceSource struct {
	batches [][]models.Message
	cancel  context.CancelFunc
}

func (s *sliceSource) Fetch(ctx context.Context, _ int) ([]models.Message, error) {
	if len(s.batches) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func TestWorkerRunDrainsSource(t *testing.T) {
	h := newHarness(models.CategoryOther, true)
	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSource{
		batches: [][]models.Message{{{ID: "a"}, {ID: "b"}}, nil, {{ID: "c"}}},
		cancel:  cancel,
	}
	w := NewWorker(src, h.processor, WorkerConfig{BatchSize: 2}, zap.NewNop())

	require.NoError(t, w.Run(ctx))
	for _, id := range []string{"a", "b", "c"} {
		_, err := h.store.GetVerdict(context.Background(), id)
		assert.NoError(t, err, id)
	}
}

func TestParseMessages(t *testing.T) {
	arr, err := ParseMessages([]byte(`[{"id":"1","subject":"s","body":"b"},{"subject":"t"}]`))
	require.NoError(t, err)
	require.Len(t, arr, 2)
	assert.Equal(t, "1", arr[0].ID)
	assert.NotEmpty(t, arr[1].ID)
	assert.False(t, arr[1].ReceivedAt.IsZero())

	lines, err := ParseMessages([]byte("{\"id\":\"x\"}\n{\"id\":\"y\"}\n"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "y", lines[1].ID)

	_, err = ParseMessages([]byte("{broken"))
	assert.Error(t, err)
}
