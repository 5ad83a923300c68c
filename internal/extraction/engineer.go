package extraction

import "strings"

const (
	levelNative         = "ネイティブレベル"
	levelBusiness       = "ビジネスレベル"
	levelConversational = "日常会話レベル"
	levelAny            = "不問"

	statusProposing = "提案中"
)

type mapping struct {
	word  string
	value string
}

// ordered; the first contained word wins
var languageLevels = []mapping{
	{"n1", levelNative},
	{"n2", levelBusiness},
	{"n3", levelConversational},
	{"n4", levelConversational},
	{"n5", levelConversational},
	{"1級", levelNative},
	{"2級", levelBusiness},
	{"3級", levelConversational},
	{"4級", levelConversational},
	{"5級", levelConversational},
	{"ネイティブ", levelNative},
	{"native", levelNative},
	{"流暢", levelBusiness},
	{"fluent", levelBusiness},
	{"ビジネス", levelBusiness},
	{"business", levelBusiness},
	{"上級", levelBusiness},
	{"advanced", levelBusiness},
	{"日常会話", levelConversational},
	{"会話", levelConversational},
	{"conversational", levelConversational},
	{"基本", levelConversational},
	{"basic", levelConversational},
	{"初級", levelConversational},
	{"中級", levelConversational},
	{"不問", levelAny},
	{"問わない", levelAny},
	{"なし", levelAny},
	{"none", levelAny},
}

var engineerStatuses = []string{"提案中", "事前面談", "面談", "結果待ち", "契約中", "営業終了", "アーカイブ"}

var statusWords = []mapping{
	{"終了", "営業終了"},
	{"完了", "営業終了"},
	{"結果", "結果待ち"},
	{"契約", "契約中"},
	{"面接", "面談"},
	{"新規", statusProposing},
	{"提案", statusProposing},
}

// normalizeEngineerFields maps free text profile attributes onto the fixed
// vocabularies of the engineer schema. Blank values are dropped, except
// current_status which defaults to 提案中.
func normalizeEngineerFields(fields map[string]any) {
	if v, ok := fields["gender"].(string); ok {
		set(fields, "gender", normalizeGender(v))
	}
	for _, key := range []string{"japanese_level", "english_level"} {
		if v, ok := fields[key].(string); ok {
			set(fields, key, normalizeLanguageLevel(v))
		}
	}
	status, _ := fields["current_status"].(string)
	fields["current_status"] = normalizeStatus(status)
}

func set(fields map[string]any, key, value string) {
	if value == "" {
		delete(fields, key)
		return
	}
	fields[key] = value
}

func normalizeGender(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "女"), strings.Contains(s, "female"), s == "f":
		return "女性"
	case strings.Contains(s, "男"), strings.Contains(s, "male"), s == "m":
		return "男性"
	}
	return "回答しない"
}

func normalizeLanguageLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	for _, m := range languageLevels {
		if strings.Contains(s, m.word) {
			return m.value
		}
	}
	if i := strings.IndexAny(s, "12345"); i >= 0 {
		switch s[i] {
		case '1':
			return levelNative
		case '2':
			return levelBusiness
		}
	}
	return levelConversational
}

func normalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	for _, allowed := range engineerStatuses {
		if s == allowed {
			return s
		}
	}
	for _, m := range statusWords {
		if strings.Contains(s, m.word) {
			return m.value
		}
	}
	return statusProposing
}
