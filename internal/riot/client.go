package riot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Rate limits for dev key (using conservative values to be safe)
	DefaultRequestsPerSecond = 15 // Actual: 20
	DefaultRequestsPer2Min   = 90 // Actual: 100

	// MaxMatchCount is the largest count match-v5 accepts for id listings
	MaxMatchCount = 100

	defaultTimeout        = 30 * time.Second
	defaultInitialBackoff = 1 * time.Second
	defaultMaxElapsed     = 2 * time.Minute
)

// Client is a rate-limited Riot API client
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string // overrides every regional host when set
	logger     *zap.Logger

	// Rate limiting
	shortWindow *rate.Limiter // per second
	longWindow  *rate.Limiter // per 2 minutes

	// Retry policy for 429/5xx
	initialBackoff time.Duration
	maxElapsed     time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClientBaseURL routes every request to url instead of the regional hosts (useful for testing)
func WithClientBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithRateLimits sets the short (1s) and long (2min) request budgets
func WithRateLimits(perSecond, per2Min int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.shortWindow = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
		if per2Min > 0 {
			c.longWindow = rate.NewLimiter(rate.Every(2*time.Minute/time.Duration(per2Min)), per2Min)
		}
	}
}

// WithRetryPolicy sets the first backoff interval and the total time spent retrying
func WithRetryPolicy(initial, maxElapsed time.Duration) ClientOption {
	return func(c *Client) {
		c.initialBackoff = initial
		c.maxElapsed = maxElapsed
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Riot API client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("riot API key cannot be empty")
	}

	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:         zap.NewNop(),
		initialBackoff: defaultInitialBackoff,
		maxElapsed:     defaultMaxElapsed,
	}
	WithRateLimits(DefaultRequestsPerSecond, DefaultRequestsPer2Min)(c)

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("riot client ready", zap.String("key", MaskAPIKey(apiKey)))
	return c, nil
}

// ResolveAccount looks up a player by Riot ID (gameName#tagLine)
func (c *Client) ResolveAccount(ctx context.Context, gameName, tagLine string, region Region) (*Identity, error) {
	endpoint := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.hostURL(region.AccountHost()), url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, endpoint, &account); err != nil {
		return nil, NewStageError(StageAccount, err)
	}
	if account.PUUID == "" {
		return nil, NewStageError(StageAccount, errors.New("account response has no puuid"))
	}

	return &Identity{
		GameName: account.GameName,
		TagLine:  account.TagLine,
		PUUID:    account.PUUID,
	}, nil
}

// ListMatchIDs fetches the most recent match ids for a player, newest first
func (c *Client) ListMatchIDs(ctx context.Context, puuid string, region Region, count int) ([]string, error) {
	if count < 1 || count > MaxMatchCount {
		return nil, NewStageError(StageHistory, fmt.Errorf("count must be between 1 and %d, got %d", MaxMatchCount, count))
	}

	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		c.hostURL(region.Host()), url.PathEscape(puuid), count)

	var matchIDs []string
	if err := c.doRequest(ctx, endpoint, &matchIDs); err != nil {
		return nil, NewStageError(StageHistory, err)
	}
	return matchIDs, nil
}

// FetchMatch fetches match details
func (c *Client) FetchMatch(ctx context.Context, matchID string, region Region) (*Match, error) {
	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.hostURL(region.Host()), url.PathEscape(matchID))

	var match Match
	if err := c.doRequest(ctx, endpoint, &match); err != nil {
		se := NewStageError(StageMatch, err)
		se.MatchID = matchID
		return nil, se
	}
	return &match, nil
}

func (c *Client) hostURL(host string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://%s.api.riotgames.com", host)
}

// waitForRateLimit blocks until both windows allow another request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.shortWindow.Wait(ctx); err != nil {
		return err
	}
	return c.longWindow.Wait(ctx)
}

// doRequest makes a rate-limited GET, retrying 429 and 5xx with exponential backoff
func (c *Client) doRequest(ctx context.Context, endpoint string, result interface{}) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff
	eb.MaxElapsedTime = c.maxElapsed
	policy := &retryAfterBackOff{BackOff: eb}

	operation := func() error {
		err := c.get(ctx, endpoint, result)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.retryable() {
			policy.next = parseRetryAfter(apiErr.RetryAfter)
			return err
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("riot request throttled, backing off",
			zap.String("url", redactURL(endpoint)),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
}

func (c *Client) get(ctx context.Context, endpoint string, result interface{}) error {
	if err := c.waitForRateLimit(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// retryAfterBackOff lets a Retry-After header replace the next exponential interval
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if b.next > 0 {
		d, b.next = b.next, 0
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

// MaskAPIKey masks an API key for display (e.g., "RGAPI-xxxx-xxxx" -> "RGAPI...xxxx")
func MaskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
