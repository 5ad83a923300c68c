package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskType selects which provider binding serves a call.
type TaskType string

const (
	TaskClassification TaskType = "classification"
	TaskExtraction     TaskType = "extraction"
	TaskAttachment     TaskType = "attachment"
)

// TaskTypes lists every task type that must have a binding.
var TaskTypes = []TaskType{TaskClassification, TaskExtraction, TaskAttachment}

func (t TaskType) Valid() bool {
	switch t {
	case TaskClassification, TaskExtraction, TaskAttachment:
		return true
	}
	return false
}

type Category string

const (
	CategoryProject      Category = "project_related"
	CategoryEngineer     Category = "engineer_related"
	CategoryOther        Category = "other"
	CategoryUnclassified Category = "unclassified"
)

// Categories are the categories a message can be scored against.
var Categories = []Category{CategoryProject, CategoryEngineer, CategoryOther}

// Extractable reports whether records can be extracted for the category.
func (c Category) Extractable() bool {
	return c == CategoryProject || c == CategoryEngineer
}

// ParseCategory maps a provider label onto a known category. Providers are
// loose with labels ("Engineer", "project-related", "案件"), so matching is by
// substring.
func ParseCategory(label string) (Category, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "":
		return "", fmt.Errorf("empty category label")
	case strings.Contains(l, "unclassified"):
		return CategoryUnclassified, nil
	case strings.Contains(l, "engineer"), strings.Contains(l, "技術者"), strings.Contains(l, "要員"):
		return CategoryEngineer, nil
	case strings.Contains(l, "project"), strings.Contains(l, "案件"):
		return CategoryProject, nil
	case strings.Contains(l, "other"), strings.Contains(l, "その他"):
		return CategoryOther, nil
	}
	return "", fmt.Errorf("unknown category label %q", label)
}

// Message is a raw mail record handed over by the mail source.
type Message struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender,omitempty"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}

// Text is the content scored and classified: subject line followed by body.
func (m Message) Text() string {
	if m.Subject == "" {
		return m.Body
	}
	return m.Subject + "\n\n" + m.Body
}

// FullText is Text followed by the extracted text of every attachment.
func (m Message) FullText() string {
	var b strings.Builder
	b.WriteString(m.Text())
	for _, a := range m.Attachments {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(a.Text)
	}
	return b.String()
}

// Filenames lists the attachment names in order.
func (m Message) Filenames() []string {
	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		names = append(names, a.Filename)
	}
	return names
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
	Text        string `json:"-"` // filled in by the pipeline
}
