package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mailsift/internal/models"
)

func TestOpenAISubmit(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"category":"engineer_related","confidence":0.9}`,
				},
			}},
		})
	}))
	defer srv.Close()

	cfg := Config{Name: "openai", Kind: "openai", BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini",
		Models: map[models.TaskType]string{models.TaskClassification: "gpt-4o"}}
	p, err := NewOpenAI(cfg)
	require.NoError(t, err)

	resp, err := p.Submit(context.Background(), models.TaskClassification, Payload{Content: "要員ご紹介"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryEngineer, resp.Label)
	require.NotNil(t, resp.Confidence)
	assert.InDelta(t, 0.9, *resp.Confidence, 1e-9)
	assert.Equal(t, "gpt-4o", gotModel)
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	cfg := Config{Name: "ds", Kind: "deepseek", BaseURL: srv.URL, APIKey: "k", Model: "deepseek-chat"}
	p, err := NewOpenAI(cfg)
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), models.TaskClassification, Payload{Content: "x"}, cfg)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestAnthropicSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": `{"title": "基幹システム更改", "skills": ["Java", "Spring"]}`},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer srv.Close()

	cfg := Config{Name: "claude", Kind: "anthropic", BaseURL: srv.URL, APIKey: "ak-test", Model: "claude-test", MaxTokens: 512}
	p, err := NewAnthropic(cfg)
	require.NoError(t, err)

	resp, err := p.Submit(context.Background(), models.TaskExtraction, Payload{Content: "案件詳細", Kind: models.KindProject}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "基幹システム更改", resp.Fields["title"])
}

func TestNoAuthSubmit(t *testing.T) {
	paths := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		assert.Empty(t, r.Header.Get("Authorization"))

		var req noAuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/classify":
			_, _ = w.Write([]byte(`{"category":"project_related"}`))
		case "/extract_cv":
			assert.Equal(t, "engineer", req.Schema)
			_, _ = w.Write([]byte(`{"name":"山田 太郎"}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	cfg := Config{Name: "local", Kind: "no_auth", BaseURL: srv.URL + "/"}
	p, err := NewNoAuth(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := p.Submit(ctx, models.TaskClassification, Payload{Content: "案件"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryProject, resp.Label)
	assert.Nil(t, resp.Confidence)

	resp, err = p.Submit(ctx, models.TaskAttachment, Payload{Content: "氏名: 山田", Kind: models.KindEngineer, Filename: "cv.txt"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "山田 太郎", resp.Fields["name"])

	_, err = p.Submit(ctx, models.TaskExtraction, Payload{Content: "x", Kind: models.KindProject}, cfg)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)

	assert.Equal(t, "/classify", <-paths)
	assert.Equal(t, "/extract_cv", <-paths)
	assert.Equal(t, "/extract_case", <-paths)
}
