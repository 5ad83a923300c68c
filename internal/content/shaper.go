// Package content bounds message text before it is scored or sent to a
// token-limited model.
package content

import (
	"fmt"
	"unicode/utf8"
)

// Marker joins head and tail of a truncated text.
const Marker = "\n...[truncated]...\n"

// Bounds are lengths in characters (runes), not bytes.
type Bounds struct {
	MaxLength  int `mapstructure:"max_length"`
	HeadLength int `mapstructure:"head_length"`
	TailLength int `mapstructure:"tail_length"`
}

func (b Bounds) Validate() error {
	if b.MaxLength <= 0 || b.HeadLength <= 0 || b.TailLength < 0 {
		return fmt.Errorf("content bounds must be positive: %+v", b)
	}
	if b.HeadLength+b.TailLength > b.MaxLength {
		return fmt.Errorf("head_length + tail_length (%d) exceeds max_length (%d)", b.HeadLength+b.TailLength, b.MaxLength)
	}
	return nil
}

// Shaped is a bounded excerpt. Tail is empty when the text was not truncated.
type Shaped struct {
	Head      string
	Tail      string
	Truncated bool
}

// Text returns the excerpt as sent to a provider.
func (s Shaped) Text() string {
	if !s.Truncated {
		return s.Head
	}
	return s.Head + Marker + s.Tail
}

// Len is the number of characters kept from the original text.
func (s Shaped) Len() int {
	return utf8.RuneCountInString(s.Head) + utf8.RuneCountInString(s.Tail)
}

// Shape keeps raw as is when it fits in MaxLength characters. Otherwise it
// keeps the first HeadLength and the last TailLength characters.
func Shape(raw string, b Bounds) Shaped {
	if utf8.RuneCountInString(raw) <= b.MaxLength {
		return Shaped{Head: raw}
	}

	runes := []rune(raw)
	head := b.HeadLength
	tail := b.TailLength
	if head+tail > b.MaxLength {
		head = min(head, b.MaxLength)
		tail = b.MaxLength - head
	}
	return Shaped{
		Head:      string(runes[:head]),
		Tail:      string(runes[len(runes)-tail:]),
		Truncated: true,
	}
}
