package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xaenox/mailsift/internal/models"
	"gopkg.in/yaml.v3"
)

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// tiers in precedence order
var tiers = []Tier{TierHigh, TierMedium, TierLow}

//go:embed keywords.yaml
var defaultTablesYAML []byte

// Weights are the per-tier scores of a present keyword.
type Weights struct {
	High   float64 `mapstructure:"high"`
	Medium float64 `mapstructure:"medium"`
	Low    float64 `mapstructure:"low"`
}

func DefaultWeights() Weights {
	return Weights{High: 3.0, Medium: 1.5, Low: 0.5}
}

func (w Weights) Validate() error {
	if w.High <= 0 || w.Medium <= 0 || w.Low <= 0 {
		return fmt.Errorf("keyword weights must be positive: %+v", w)
	}
	return nil
}

func (w Weights) of(t Tier) float64 {
	switch t {
	case TierHigh:
		return w.High
	case TierMedium:
		return w.Medium
	}
	return w.Low
}

// Tables are the keyword sets per category and tier, the spam list and the
// sender and attachment name patterns.
type Tables struct {
	Categories        map[models.Category]map[Tier][]string
	Spam              []string
	SuspiciousSenders []string
	RecruitingSenders []string
	ResumeNames       []string
	ResumeExtensions  []string
}

type tablesFile struct {
	Categories map[string]map[string][]string `yaml:"categories"`
	Spam       []string                       `yaml:"spam"`
	Senders    struct {
		Suspicious []string `yaml:"suspicious"`
		Recruiting []string `yaml:"recruiting"`
	} `yaml:"senders"`
	Attachments struct {
		Resume     []string `yaml:"resume"`
		Extensions []string `yaml:"extensions"`
	} `yaml:"attachments"`
}

// ParseTables decodes a YAML keyword table document.
func ParseTables(data []byte) (Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Tables{}, fmt.Errorf("decode keyword tables: %w", err)
	}

	t := Tables{
		Categories:        make(map[models.Category]map[Tier][]string),
		Spam:              f.Spam,
		SuspiciousSenders: f.Senders.Suspicious,
		RecruitingSenders: f.Senders.Recruiting,
		ResumeNames:       f.Attachments.Resume,
		ResumeExtensions:  f.Attachments.Extensions,
	}
	for name, byTier := range f.Categories {
		cat := models.Category(name)
		if cat != models.CategoryProject && cat != models.CategoryEngineer && cat != models.CategoryOther {
			return Tables{}, fmt.Errorf("keyword tables: unknown category %q", name)
		}
		t.Categories[cat] = make(map[Tier][]string)
		for tier, words := range byTier {
			switch Tier(tier) {
			case TierHigh, TierMedium, TierLow:
			default:
				return Tables{}, fmt.Errorf("keyword tables: category %s: unknown tier %q", name, tier)
			}
			t.Categories[cat][Tier(tier)] = words
		}
	}
	return t, nil
}

// LoadTables reads tables from path, or returns the built-in tables when
// path is empty.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read keyword tables: %w", err)
	}
	return ParseTables(data)
}

// DefaultTables returns the built-in Japanese staffing vocabulary.
func DefaultTables() Tables {
	t, err := ParseTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in keyword tables: %v", err))
	}
	return t
}

type compiledKeyword struct {
	word   string
	weight float64
}

// Scorer is the local keyword heuristic. It is safe for concurrent use.
type Scorer struct {
	categories    map[models.Category][]compiledKeyword
	spam          []string
	spamThreshold int
	suspicious    []string
	recruiting    []string
	resumeNames   []string
	resumeExts    []string
	// added to engineer_related for a recruiting sender or a resume file
	engineerBonus float64
}

// NewScorer lowercases and deduplicates the tables once. A keyword listed
// in several tiers of one category keeps its highest weight.
func NewScorer(t Tables, w Weights, spamThreshold int) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if spamThreshold < 1 {
		return nil, fmt.Errorf("spam threshold must be at least 1, got %d", spamThreshold)
	}

	s := &Scorer{
		categories:    make(map[models.Category][]compiledKeyword, len(t.Categories)),
		spam:          lowered(t.Spam),
		spamThreshold: spamThreshold,
		suspicious:    lowered(t.SuspiciousSenders),
		recruiting:    lowered(t.RecruitingSenders),
		resumeNames:   lowered(t.ResumeNames),
		resumeExts:    lowered(t.ResumeExtensions),
		engineerBonus: w.High,
	}
	for cat, byTier := range t.Categories {
		seen := make(map[string]bool)
		for _, tier := range tiers {
			for _, word := range byTier[tier] {
				word = strings.ToLower(strings.TrimSpace(word))
				if word == "" || seen[word] {
					continue
				}
				seen[word] = true
				s.categories[cat] = append(s.categories[cat], compiledKeyword{word: word, weight: w.of(tier)})
			}
		}
	}
	return s, nil
}

func lowered(words []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

// Input is a message as the scorer sees it.
type Input struct {
	Text      string
	Sender    string
	Filenames []string
}

// Score computes the keyword signal of text alone.
func (s *Scorer) Score(text string) models.KeywordSignal {
	return s.ScoreMessage(Input{Text: text})
}

// ScoreMessage computes the keyword signal of a message. Each keyword counts
// once no matter how often it occurs. A suspicious sender forces the spam
// override; a recruiting sender and a resume attachment each add the high
// tier weight to engineer_related once.
func (s *Scorer) ScoreMessage(in Input) models.KeywordSignal {
	text := strings.ToLower(in.Text)

	sig := models.KeywordSignal{
		Scores:  make(map[models.Category]float64, len(models.Categories)),
		Matched: make(map[models.Category][]string),
	}
	distinct := make(map[string]struct{})
	for _, cat := range models.Categories {
		sig.Scores[cat] = 0
		for _, kw := range s.categories[cat] {
			if strings.Contains(text, kw.word) {
				sig.Scores[cat] += kw.weight
				sig.Matched[cat] = append(sig.Matched[cat], kw.word)
				distinct[kw.word] = struct{}{}
			}
		}
	}
	sig.MatchedCount = len(distinct)

	for _, word := range s.spam {
		if strings.Contains(text, word) {
			sig.SpamHits++
		}
	}

	if snd := parseSender(in.Sender); snd.address != "" || snd.name != "" {
		sig.SuspiciousSender = matchAny(s.suspicious, snd.address)
		sig.RecruitingSender = matchAny(s.recruiting, snd.domain, snd.name)
	}
	if sig.RecruitingSender {
		sig.Scores[models.CategoryEngineer] += s.engineerBonus
	}

	for _, name := range in.Filenames {
		if s.isResume(name) {
			sig.ResumeFiles = append(sig.ResumeFiles, name)
		}
	}
	if len(sig.ResumeFiles) > 0 {
		sig.Scores[models.CategoryEngineer] += s.engineerBonus
	}

	sig.SpamOverride = sig.SpamHits >= s.spamThreshold || sig.SuspiciousSender
	return sig
}

// isResume reports whether filename has a resume extension and a resume
// word in its name.
func (s *Scorer) isResume(filename string) bool {
	name := strings.ToLower(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || !slices.Contains(s.resumeExts, ext) {
		return false
	}
	base := strings.TrimSuffix(name, ext)
	for _, word := range s.resumeNames {
		if strings.Contains(base, word) {
			return true
		}
	}
	return false
}
