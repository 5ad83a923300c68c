// Package notify routes incomplete extraction results to a human reviewer.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/mailsift/internal/models"
	"go.uber.org/zap"
)

type Notifier interface {
	NotifyReview(ctx context.Context, msg models.Message, v models.Verdict, res models.ExtractionResult) error
}

// Noop drops review requests.
type Noop struct{}

func (Noop) NotifyReview(context.Context, models.Message, models.Verdict, models.ExtractionResult) error {
	return nil
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts review requests into a chat.
type Telegram struct {
	api    sender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) NotifyReview(ctx context.Context, msg models.Message, v models.Verdict, res models.ExtractionResult) error {
	out := tgbotapi.NewMessage(t.chatID, formatReview(msg, v, res))
	out.ParseMode = "MarkdownV2"
	if _, err := t.api.Send(out); err != nil {
		t.logger.Error("Failed to send review request",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return fmt.Errorf("send review request: %w", err)
	}
	return nil
}

func formatReview(msg models.Message, v models.Verdict, res models.ExtractionResult) string {
	var b strings.Builder
	b.WriteString("*Manual review needed*\n\n")
	fmt.Fprintf(&b, "*Subject:* %s\n", escapeMarkdown(msg.Subject))
	if msg.Sender != "" {
		fmt.Fprintf(&b, "*From:* %s\n", escapeMarkdown(msg.Sender))
	}
	fmt.Fprintf(&b, "*Category:* %s \\(%s\\)\n", escapeMarkdown(string(v.Category)), escapeMarkdown(fmt.Sprintf("%.2f", v.Confidence)))
	source := string(res.Source)
	if res.Filename != "" {
		source += ": " + res.Filename
	}
	fmt.Fprintf(&b, "*Source:* %s\n", escapeMarkdown(source))

	switch {
	case res.Error != "":
		fmt.Fprintf(&b, "*Error:* %s\n", escapeMarkdown(res.Error))
	default:
		if len(res.MissingFields) > 0 {
			fmt.Fprintf(&b, "*Missing:* %s\n", escapeMarkdown(strings.Join(res.MissingFields, ", ")))
		}
		for _, e := range res.ValidationErrors {
			fmt.Fprintf(&b, "• %s\n", escapeMarkdown(e))
		}
	}
	fmt.Fprintf(&b, "\n`%s`", escapeMarkdown(msg.ID))
	return b.String()
}

func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
