package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"papa-puns/internal/models"

	"github.com/nats-io/nats.go"
)

type ackRecorder struct {
	acks, naks int
}

func (r *ackRecorder) ack(...nats.AckOpt) error {
	r.acks++
	return nil
}

func (r *ackRecorder) nak(...nats.AckOpt) error {
	r.naks++
	return nil
}

func TestNotificationJSON(t *testing.T) {
	msg := models.Notification{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		ChannelID: "new-joke-alerts",
		Title:     "A new Papa Pun is ready",
		Body:      "Why did the... Tap to read the full joke in the app.",
		Sound:     true,
		Data:      map[string]string{"type": models.NotificationTypeDailyJoke},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal Notification: %v", err)
	}

	var fields map[string]any
	json.Unmarshal(data, &fields)
	if fields["data"].(map[string]any)["type"] != "daily_joke" {
		t.Errorf("data.type = %v, want daily_joke", fields["data"])
	}
	if fields["sound"] != true {
		t.Errorf("sound = %v, want true", fields["sound"])
	}
}

func TestHandleMessage(t *testing.T) {
	valid, _ := json.Marshal(models.Notification{ID: "n1", Title: "t", Body: "b"})

	tests := []struct {
		name       string
		data       []byte
		handlerErr error
		wantCalls  int
		wantAcks   int
		wantNaks   int
	}{
		{"delivered", valid, nil, 1, 1, 0},
		{"handler fails", valid, errors.New("telegram down"), 1, 0, 1},
		{"garbage payload", []byte("not json"), nil, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ackRecorder{}
			calls := 0
			handler := func(n *models.Notification) error {
				calls++
				if n.ID != "n1" {
					t.Errorf("ID = %v, want n1", n.ID)
				}
				return tt.handlerErr
			}

			handleMessage(tt.data, handler, rec.ack, rec.nak)

			if calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", calls, tt.wantCalls)
			}
			if rec.acks != tt.wantAcks || rec.naks != tt.wantNaks {
				t.Errorf("acks/naks = %d/%d, want %d/%d", rec.acks, rec.naks, tt.wantAcks, tt.wantNaks)
			}
		})
	}
}
