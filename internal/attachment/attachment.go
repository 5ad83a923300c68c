// Package attachment turns mail attachments into plain text.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/mailsift/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/japanese"
)

// ErrUnsupportedFormat means no text could be taken from the attachment.
// Callers skip the attachment and carry on with the body.
var ErrUnsupportedFormat = errors.New("unsupported attachment format")

type Extractor interface {
	Extract(ctx context.Context, a models.Attachment) (string, error)
}

var (
	plainExts = map[string]bool{".txt": true, ".csv": true, ".tsv": true, ".md": true, ".log": true, ".json": true}
	htmlExts  = map[string]bool{".html": true, ".htm": true}
)

// TextExtractor handles plain text and HTML attachments, including the
// Shift_JIS, EUC-JP and ISO-2022-JP encodings common in Japanese mail.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, a models.Attachment) (string, error) {
	ext := strings.ToLower(filepath.Ext(a.Filename))
	mediaType, _, _ := mime.ParseMediaType(a.ContentType)

	switch {
	case htmlExts[ext] || mediaType == "text/html":
		text, err := decode(a.Data)
		if err != nil {
			return "", err
		}
		return htmlText(text), nil
	case plainExts[ext] || strings.HasPrefix(mediaType, "text/"):
		return decode(a.Data)
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, a.Filename, a.ContentType)
}

func decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
	}
	if bytes.Contains(data, []byte("\x1b$B")) {
		out, err := japanese.ISO2022JP.NewDecoder().Bytes(data)
		if err == nil {
			return string(out), nil
		}
	}
	if out, err := japanese.ShiftJIS.NewDecoder().Bytes(data); err == nil && clean(out) {
		return string(out), nil
	}
	if out, err := japanese.EUCJP.NewDecoder().Bytes(data); err == nil && clean(out) {
		return string(out), nil
	}
	return "", fmt.Errorf("%w: unknown text encoding", ErrUnsupportedFormat)
}

// clean reports decoder output free of replacement characters.
func clean(out []byte) bool {
	return !bytes.ContainsRune(out, utf8.RuneError)
}

var blockTags = map[string]bool{"p": true, "br": true, "div": true, "tr": true, "li": true, "h1": true, "h2": true, "h3": true, "table": true}

func htmlText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case tag == "script" || tag == "style":
				skip++
			case blockTags[tag]:
				b.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				if t := strings.TrimSpace(string(z.Text())); t != "" {
					b.WriteString(t)
					b.WriteString(" ")
				}
			}
		}
	}
}
