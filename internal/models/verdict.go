package models

import "time"

// DecisionSource tells how a verdict's category was reached.
type DecisionSource string

const (
	SourceAIFused      DecisionSource = "ai_fused"
	SourceKeywordOnly  DecisionSource = "keyword_only"
	SourceSpamOverride DecisionSource = "spam_override"
)

// KeywordSignal is the local heuristic result for one message.
type KeywordSignal struct {
	Scores           map[Category]float64  `json:"scores"`
	Matched          map[Category][]string `json:"matched,omitempty"`
	MatchedCount     int                   `json:"matched_count"`
	SpamHits         int                   `json:"spam_hits"`
	SpamOverride     bool                  `json:"spam_override"`
	SuspiciousSender bool                  `json:"suspicious_sender,omitempty"`
	RecruitingSender bool                  `json:"recruiting_sender,omitempty"`
	ResumeFiles      []string              `json:"resume_files,omitempty"`
}

// MaxScore returns the highest category score.
func (s KeywordSignal) MaxScore() float64 {
	var max float64
	for _, v := range s.Scores {
		if v > max {
			max = v
		}
	}
	return max
}

// TopCategory returns the single best scoring category. A tie for the top
// score or an empty signal yields CategoryUnclassified.
func (s KeywordSignal) TopCategory() Category {
	max := s.MaxScore()
	if max <= 0 {
		return CategoryUnclassified
	}
	top := CategoryUnclassified
	n := 0
	for _, c := range Categories {
		if s.Scores[c] == max {
			top = c
			n++
		}
	}
	if n != 1 {
		return CategoryUnclassified
	}
	return top
}

// Evidence is everything that contributed to a verdict.
type Evidence struct {
	ComputedCategory   Category       `json:"computed_category"`
	ComputedConfidence float64        `json:"computed_confidence"`
	AILabel            Category       `json:"ai_label,omitempty"`
	AIConfidence       *float64       `json:"ai_confidence,omitempty"`
	Reasoning          string         `json:"reasoning,omitempty"`
	Keyword            KeywordSignal  `json:"keyword"`
	Source             DecisionSource `json:"source"`
	Boosted            bool           `json:"boosted"`
	Truncated          bool           `json:"truncated"`
	ProviderError      string         `json:"provider_error,omitempty"`
}

// Verdict is the outcome of one classification pass over a message.
type Verdict struct {
	MessageID    string    `json:"message_id"`
	Category     Category  `json:"category"`
	Confidence   float64   `json:"confidence"`
	Evidence     Evidence  `json:"evidence"`
	Provider     string    `json:"provider,omitempty"`
	FallbackUsed bool      `json:"fallback_used"`
	CreatedAt    time.Time `json:"created_at"`
}
