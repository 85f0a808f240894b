package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"papa-puns/internal/background"
	"papa-puns/internal/models"
	"papa-puns/internal/store"
)

func getHealth(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthBeforeFirstRun(t *testing.T) {
	sched := background.NewScheduler(store.NewMemory(), nil)
	body := getHealth(t, healthHandler("/healthz", sched))

	if _, ok := body["last_run"]; ok {
		t.Errorf("last_run present before any run: %v", body)
	}
	if _, ok := body["last_outcome"]; ok {
		t.Errorf("last_outcome present before any run: %v", body)
	}
	if body["background"] != "available" {
		t.Errorf("background = %v, want available", body["background"])
	}
}

func TestHealthAfterRun(t *testing.T) {
	sched := background.NewScheduler(store.NewMemory(), func(context.Context) models.Outcome {
		return models.OutcomeNewData
	})
	sched.RunNow(context.Background())

	body := getHealth(t, healthHandler("/healthz", sched))
	if body["last_outcome"] != "new_data" {
		t.Errorf("last_outcome = %v, want new_data", body["last_outcome"])
	}
	if _, ok := body["last_run"]; !ok {
		t.Errorf("last_run missing after a run: %v", body)
	}
}
