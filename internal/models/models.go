package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrNotJSONObject = errors.New("joke payload is not a JSON object")

// Joke is the payload returned by the joke service, kept as received.
type Joke struct {
	raw json.RawMessage
}

// NewJoke validates that data is a JSON object and copies it.
func NewJoke(data []byte) (Joke, error) {
	data = bytes.TrimSpace(data)
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return Joke{}, ErrNotJSONObject
	}
	return Joke{raw: append(json.RawMessage(nil), data...)}, nil
}

// JokeFromText builds a payload with only the text field set.
func JokeFromText(text string) Joke {
	data, _ := json.Marshal(map[string]string{"joke": text})
	return Joke{raw: data}
}

func (j Joke) IsZero() bool {
	return len(j.raw) == 0
}

// Field returns the raw value of a top-level field.
func (j Joke) Field(name string) (any, bool) {
	var fields map[string]any
	if err := json.Unmarshal(j.raw, &fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	return v, ok
}

// Text returns the joke body when present and a string.
func (j Joke) Text() (string, bool) {
	v, ok := j.Field("joke")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (j Joke) ID() string {
	v, _ := j.Field("id")
	s, _ := v.(string)
	return s
}

func (j Joke) Bytes() []byte {
	return append([]byte(nil), j.raw...)
}

func (j Joke) MarshalJSON() ([]byte, error) {
	if j.IsZero() {
		return []byte("null"), nil
	}
	return j.Bytes(), nil
}

func (j *Joke) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		j.raw = nil
		return nil
	}
	joke, err := NewJoke(data)
	if err != nil {
		return err
	}
	*j = joke
	return nil
}

// CacheEntry is the single daily-joke slot.
type CacheEntry struct {
	Date string `json:"date"`
	Joke Joke   `json:"joke"`
}

type AcquisitionResult struct {
	Joke       Joke
	FromCache  bool
	HasNewJoke bool
	// Stale marks a cached joke served because the fetch failed.
	Stale bool
}

type ViewState int

const (
	StateInitial ViewState = iota
	StatePending
	StateError
	StateSuccess
)

func (s ViewState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePending:
		return "pending"
	case StateError:
		return "error"
	case StateSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Outcome is what a background run reports to the scheduler.
type Outcome string

const (
	OutcomeNoData  Outcome = "no_data"
	OutcomeNewData Outcome = "new_data"
	OutcomeFailed  Outcome = "failed"
)

type Notification struct {
	ID        string            `json:"id"`
	ChannelID string            `json:"channel_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Sound     bool              `json:"sound"`
	Data      map[string]string `json:"data"`
}

const NotificationTypeDailyJoke = "daily_joke"
