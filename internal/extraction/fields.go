package extraction

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/xaenox/mailsift/internal/models"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindStrings
	kindInt
	kindBool
)

var (
	projectFields  = fieldKinds(models.ProjectRecord{})
	engineerFields = fieldKinds(models.EngineerRecord{})

	listSeparators = regexp.MustCompile(`[,、，/／・\n]+`)
	firstNumber    = regexp.MustCompile(`\d+`)

	truthy = map[string]bool{"true": true, "yes": true, "可": true, "○": true, "有": true, "あり": true, "ok": true}
	falsy  = map[string]bool{"false": true, "no": true, "不可": true, "×": true, "無": true, "なし": true, "ng": true}
)

// fieldKinds reads the JSON field names and shapes of a record struct.
func fieldKinds(record any) map[string]fieldKind {
	t := reflect.TypeOf(record)
	out := make(map[string]fieldKind, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		switch f.Type.String() {
		case "[]string":
			out[name] = kindStrings
		case "*int":
			out[name] = kindInt
		case "*bool":
			out[name] = kindBool
		default:
			out[name] = kindString
		}
	}
	return out
}

func fieldsOf(kind models.RecordKind) map[string]fieldKind {
	if kind == models.KindEngineer {
		return engineerFields
	}
	return projectFields
}

// coerce repairs the usual shape mistakes of model output: numbers where
// strings belong, comma separated strings where lists belong, "可"/"不可"
// for booleans. Values it cannot repair are left for schema validation.
func coerce(fields map[string]any, kinds map[string]fieldKind) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil {
			continue
		}
		kind, known := kinds[k]
		if !known {
			out[k] = v
			continue
		}
		if c, ok := coerceValue(v, kind); ok {
			out[k] = c
		}
	}
	return out
}

func coerceValue(v any, kind fieldKind) (any, bool) {
	switch kind {
	case kindString:
		switch x := v.(type) {
		case string:
			x = strings.TrimSpace(x)
			return x, x != ""
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true
		case []any:
			parts := stringItems(x)
			return strings.Join(parts, ", "), len(parts) > 0
		}
	case kindStrings:
		switch x := v.(type) {
		case []any:
			parts := stringItems(x)
			return parts, len(parts) > 0
		case string:
			parts := make([]string, 0)
			for _, p := range listSeparators.Split(x, -1) {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			return parts, len(parts) > 0
		}
	case kindInt:
		switch x := v.(type) {
		case float64:
			if x == float64(int(x)) {
				return int(x), true
			}
		case string:
			if m := firstNumber.FindString(x); m != "" {
				n, err := strconv.Atoi(m)
				return n, err == nil
			}
			return nil, false
		}
	case kindBool:
		if s, ok := v.(string); ok {
			s = strings.ToLower(strings.TrimSpace(s))
			switch {
			case truthy[s]:
				return true, true
			case falsy[s]:
				return false, true
			}
		}
	}
	return v, true
}

func stringItems(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		s, ok := it.(string)
		if !ok {
			s = fmt.Sprint(it)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
