package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	immediateWords = []string{"即日", "即日開始", "すぐ", "今すぐ", "asap"}
	japaneseDate   = regexp.MustCompile(`(\d{4})年(\d{1,2})月?(?:(\d{1,2})日?)?`)
	numericDate    = regexp.MustCompile(`(\d{4})[/.-](\d{1,2})(?:[/.-](\d{1,2}))?`)
)

// normalizeDate converts the date spellings seen in staffing mail to
// YYYY-MM-DD. A missing day means the first of the month.
func normalizeDate(s string, today time.Time) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, w := range immediateWords {
		if strings.EqualFold(s, w) {
			return today.Format(dateLayout), true
		}
	}
	for _, re := range []*regexp.Regexp{japaneseDate, numericDate} {
		if m := re.FindStringSubmatch(s); m != nil {
			return buildDate(m[1], m[2], m[3])
		}
	}
	return "", false
}

func buildDate(y, m, d string) (string, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day := 1
	if d != "" {
		day, _ = strconv.Atoi(d)
	}
	out := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	// rejects 2024-02-30 and friends
	if _, err := time.Parse(dateLayout, out); err != nil {
		return "", false
	}
	return out, true
}
