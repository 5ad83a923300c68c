package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xaenox/mailsift/internal/models"
)

type classificationAnswer struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Normalize turns the raw text answer of a backend into a Response.
// Anything that does not parse is wrapped in ErrMalformedResponse.
func Normalize(task models.TaskType, raw string) (Response, error) {
	raw = strings.TrimSpace(raw)
	resp := Response{Raw: raw}
	if raw == "" {
		return resp, fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}

	switch task {
	case models.TaskClassification:
		body, ok := extractJSON(raw)
		if !ok {
			// bare label answers like "engineer_related"
			label, err := models.ParseCategory(raw)
			if err != nil || len(raw) > 64 {
				return resp, fmt.Errorf("%w: no json object in answer", ErrMalformedResponse)
			}
			resp.Label = label
			return resp, nil
		}
		var ans classificationAnswer
		if err := json.Unmarshal([]byte(body), &ans); err != nil {
			return resp, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		label, err := models.ParseCategory(ans.Category)
		if err != nil {
			return resp, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if ans.Confidence != nil {
			c := *ans.Confidence
			if c < 0 || c > 1 {
				return resp, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, c)
			}
		}
		resp.Label = label
		resp.Confidence = ans.Confidence
		resp.Reasoning = ans.Reasoning
		return resp, nil

	case models.TaskExtraction, models.TaskAttachment:
		body, ok := extractJSON(raw)
		if !ok {
			return resp, fmt.Errorf("%w: no json object in answer", ErrMalformedResponse)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return resp, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		resp.Fields = fields
		return resp, nil
	}
	return resp, fmt.Errorf("unknown task type %q", task)
}

// extractJSON cuts the outermost object out of an answer that may be
// wrapped in prose or a markdown fence.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
