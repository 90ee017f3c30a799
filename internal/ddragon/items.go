package ddragon

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const defaultBaseURL = "https://ddragon.leagueoflegends.com"

// ItemData holds the item fields read from Data Dragon
type ItemData struct {
	Name string `json:"name"`
}

// ItemRegistry holds item ID to name mapping
type ItemRegistry struct {
	client  *http.Client
	baseURL string

	mu      sync.RWMutex
	items   map[int]string
	version string
}

// NewItemRegistry creates a new item registry. An empty baseURL uses Data Dragon.
func NewItemRegistry(baseURL string) *ItemRegistry {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ItemRegistry{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		items:   make(map[int]string),
	}
}

// Load fetches item data for the latest Data Dragon version
func (r *ItemRegistry) Load(ctx context.Context) error {
	var versions []string
	if err := r.getJSON(ctx, r.baseURL+"/api/versions.json", &versions); err != nil {
		return fmt.Errorf("failed to fetch versions: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Errorf("no versions available")
	}
	version := versions[0]

	var itemData struct {
		Data map[string]ItemData `json:"data"`
	}
	itemURL := fmt.Sprintf("%s/cdn/%s/data/en_US/item.json", r.baseURL, version)
	if err := r.getJSON(ctx, itemURL, &itemData); err != nil {
		return fmt.Errorf("failed to fetch items: %w", err)
	}

	items := make(map[int]string, len(itemData.Data))
	for idStr, item := range itemData.Data {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		items[id] = item.Name
	}

	r.mu.Lock()
	r.items = items
	r.version = version
	r.mu.Unlock()
	return nil
}

func (r *ItemRegistry) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Name returns the item name for id and whether it is known
func (r *ItemRegistry) Name(id int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.items[id]
	return name, ok
}

// Version returns the loaded Data Dragon version, empty until Load succeeds
func (r *ItemRegistry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
