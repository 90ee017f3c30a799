package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"flashcoach/internal/report"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorGreen = 5763719  // 0x57F287 - mostly winning
	colorGold  = 15844367 // 0xF1C40F - everything else

	// Discord rejects embed descriptions longer than this
	maxDescriptionLength = 4096

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Retries after the first attempt when rate limited
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewReportPayload creates a payload announcing a finished coaching report
func NewReportPayload(r *report.Report) WebhookPayload {
	summary := r.Summary()

	color := colorGold
	if summary.WinRate() >= 50 {
		color = colorGreen
	}

	fields := []EmbedField{
		{
			Name:   "Player",
			Value:  r.Player.RiotID(),
			Inline: true,
		},
		{
			Name:   "Region",
			Value:  r.Region.String(),
			Inline: true,
		},
		{
			Name:   "Matches",
			Value:  formatNumber(summary.Matches),
			Inline: true,
		},
		{
			Name:   "Win Rate",
			Value:  fmt.Sprintf("%.1f%%", summary.WinRate()),
			Inline: true,
		},
	}
	if summary.TopChampion != "" {
		fields = append(fields, EmbedField{
			Name:   "Most Played",
			Value:  summary.TopChampion,
			Inline: true,
		})
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:       "📋 Coaching Report: " + r.Player.RiotID(),
				Description: truncate(r.Body, maxDescriptionLength),
				Color:       color,
				Fields:      fields,
				Footer: &EmbedFooter{
					Text: "Flash Coach · " + r.Model,
				},
				Timestamp: r.GeneratedAt.UTC().Format(time.RFC3339),
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// SendReport posts a report summary to the webhook
func (c *WebhookClient) SendReport(ctx context.Context, r *report.Report) error {
	return c.sendPayload(ctx, NewReportPayload(r))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt == maxRetries {
				break
			}
			waitDuration := time.Second
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					waitDuration = time.Duration(seconds) * time.Second
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}
