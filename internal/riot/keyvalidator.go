package riot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrKeyRejected means Riot answered 401 or 403 to a status request
var ErrKeyRejected = errors.New("riot API key rejected")

// PlatformStatus is the part of /lol/status/v4/platform-data read by ValidateKey
type PlatformStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ValidateKey calls region's platform status endpoint once, without retry.
// A rejected key wraps ErrKeyRejected; any other error leaves validity unknown.
func (c *Client) ValidateKey(ctx context.Context, region Region) (*PlatformStatus, error) {
	endpoint := c.hostURL(region.Platform()) + "/lol/status/v4/platform-data"

	var status PlatformStatus
	err := c.get(ctx, endpoint, &status)
	if err == nil {
		c.logger.Debug("riot API key accepted",
			zap.String("platform", status.ID),
			zap.String("key", MaskAPIKey(c.apiKey)))
		return &status, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrKeyRejected, MaskAPIKey(c.apiKey))
		}
	}
	return nil, fmt.Errorf("could not validate riot API key: %w", err)
}
