package notifier

import (
	"strings"

	"papa-puns/internal/models"
)

const (
	FallbackPreview  = "A fresh dad joke just landed..."
	previewMaxLength = 85
	shortTextLength  = 24
	minBreakIndex    = 25
	ellipsis         = "..."
)

// PreviewJoke previews the joke text, or returns FallbackPreview when the
// payload has no string text.
func PreviewJoke(j models.Joke) string {
	text, ok := j.Text()
	if !ok {
		return FallbackPreview
	}
	return Preview(text)
}

// Preview shortens text for a notification body. Lengths count runes.
func Preview(text string) string {
	if text == "" {
		return FallbackPreview
	}

	compact := []rune(strings.Join(strings.Fields(text), " "))
	n := len(compact)

	if n <= shortTextLength {
		limit := max(10, n-6)
		return string(compact[:min(limit, n)]) + ellipsis
	}

	limit := min(previewMaxLength, n*65/100)
	shortened := compact[:limit]
	if i := lastSpace(shortened); i > minBreakIndex {
		shortened = shortened[:i]
	}
	return string(shortened) + ellipsis
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}
