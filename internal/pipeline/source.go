package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/mailsift/internal/models"
)

// LoadMessages reads messages from a JSON file holding either an array or
// one object per line. Messages without an id get a fresh one.
func LoadMessages(path string) ([]models.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return ParseMessages(data)
}

func ParseMessages(data []byte) ([]models.Message, error) {
	data = bytes.TrimSpace(data)
	var msgs []models.Message

	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		for dec.More() {
			var m models.Message
			if err := dec.Decode(&m); err != nil {
				return nil, fmt.Errorf("decode message %d: %w", len(msgs)+1, err)
			}
			msgs = append(msgs, m)
		}
	}

	now := time.Now()
	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = uuid.NewString()
		}
		if msgs[i].ReceivedAt.IsZero() {
			msgs[i].ReceivedAt = now
		}
	}
	return msgs, nil
}
