package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"flashcoach/internal/compactor"
	"flashcoach/internal/report"
	"flashcoach/internal/riot"
)

func testReport(body string) *report.Report {
	r := report.New(
		riot.Identity{GameName: "Caps", TagLine: "EUW", PUUID: "p"},
		riot.Europe,
		"gemini-1.5-flash-002",
		[]compactor.CompactedMatch{
			{MatchID: "EUW1_3", ChampionName: "Sylas", Win: true},
			{MatchID: "EUW1_2", ChampionName: "Sylas", Win: true},
			{MatchID: "EUW1_1", ChampionName: "LeBlanc"},
		},
		body,
	)
	r.GeneratedAt = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	return r
}

// TestReportPayload_Format tests the embed built for a report
func TestReportPayload_Format(t *testing.T) {
	payload := NewReportPayload(testReport("Solid laning."))

	if len(payload.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]

	if !strings.Contains(embed.Title, "Caps#EUW") {
		t.Errorf("Expected title to contain player, got: %s", embed.Title)
	}
	if embed.Description != "Solid laning." {
		t.Errorf("Expected body as description, got: %s", embed.Description)
	}
	if embed.Color != colorGreen {
		t.Errorf("Expected green color for a winning record, got: %d", embed.Color)
	}
	if embed.Timestamp != "2024-05-01T18:00:00Z" {
		t.Errorf("Unexpected timestamp: %s", embed.Timestamp)
	}

	want := map[string]string{
		"Player":      "Caps#EUW",
		"Region":      "EUROPE",
		"Matches":     "3",
		"Win Rate":    "66.7%",
		"Most Played": "Sylas",
	}
	if len(embed.Fields) != len(want) {
		t.Fatalf("Expected %d fields, got %d", len(want), len(embed.Fields))
	}
	for _, f := range embed.Fields {
		if want[f.Name] != f.Value {
			t.Errorf("Field %q: expected %q, got %q", f.Name, want[f.Name], f.Value)
		}
	}

	if embed.Footer == nil || !strings.Contains(embed.Footer.Text, "gemini-1.5-flash-002") {
		t.Error("Expected footer to name the model")
	}
}

// TestReportPayload_Truncates tests that long reports fit Discord's description limit
func TestReportPayload_Truncates(t *testing.T) {
	body := strings.Repeat("é", maxDescriptionLength+500)
	embed := NewReportPayload(testReport(body)).Embeds[0]

	if n := utf8.RuneCountInString(embed.Description); n != maxDescriptionLength {
		t.Errorf("Expected %d runes, got %d", maxDescriptionLength, n)
	}
	if !strings.HasSuffix(embed.Description, "…") {
		t.Error("Expected truncated description to end with an ellipsis")
	}
}

// TestWebhookClient_SendReport tests that the client posts the JSON payload
func TestWebhookClient_SendReport(t *testing.T) {
	var received WebhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected application/json, got %s", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("Invalid JSON body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	if err := client.SendReport(context.Background(), testReport("Ward more.")); err != nil {
		t.Fatalf("SendReport failed: %v", err)
	}

	if len(received.Embeds) != 1 || received.Embeds[0].Description != "Ward more." {
		t.Errorf("Unexpected payload: %+v", received)
	}
}

// TestWebhookClient_RetriesRateLimit tests that 429 is retried
func TestWebhookClient_RetriesRateLimit(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	if err := client.SendReport(context.Background(), testReport("x")); err != nil {
		t.Fatalf("Expected success after retry, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

// TestWebhookClient_GivesUp tests the retry ceiling
func TestWebhookClient_GivesUp(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	if err := client.SendReport(context.Background(), testReport("x")); err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	// one attempt plus maxRetries retries
	if calls != maxRetries+1 {
		t.Errorf("Expected %d calls, got %d", maxRetries+1, calls)
	}
}

// TestWebhookClient_ServerError tests that other statuses fail immediately
func TestWebhookClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhookClient(server.URL).SendReport(context.Background(), testReport("x"))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("Expected status 400 error, got: %v", err)
	}
}

// TestFormatNumber tests comma formatting
func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{47832, "47,832"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.input); got != tt.expected {
			t.Errorf("formatNumber(%d) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}
