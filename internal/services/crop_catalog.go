package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	cropCatalogPageSize = 50
	cropCatalogTimeout  = 15 * time.Second
	// Guards against a catalog whose pagination never terminates
	cropCatalogMaxPages = 200

	CatalogSourceFallback = "fallback"
	CatalogSourceRemote   = "remote"
)

// DefaultCrops is served until the first refresh completes and whenever a
// refresh fails.
var DefaultCrops = []string{
	"maize",
	"rice",
	"wheat",
	"sorghum",
	"millet",
	"barley",
	"cassava",
	"potato",
	"sweet_potato",
	"yam",
	"beans",
	"cowpea",
	"groundnut",
	"soybean",
	"chickpea",
	"pigeon_pea",
	"tomato",
	"onion",
	"cabbage",
	"kale",
	"pepper",
	"eggplant",
	"okra",
	"carrot",
	"banana",
	"plantain",
	"mango",
	"avocado",
	"citrus",
	"coffee",
	"tea",
	"cocoa",
	"cotton",
	"sugarcane",
	"sunflower",
}

// CropCatalog holds the set of recognized crop identifiers. The snapshot is
// swapped atomically so readers always see a complete list.
type CropCatalog struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
	snapshot *atomic.Pointer[catalogSnapshot]
}

type catalogSnapshot struct {
	crops       []string
	index       map[string]struct{}
	source      string
	loaded      bool
	refreshedAt time.Time
}

func newCatalogSnapshot(crops []string, source string, loaded bool) *catalogSnapshot {
	index := make(map[string]struct{}, len(crops))
	for _, c := range crops {
		index[c] = struct{}{}
	}
	snap := &catalogSnapshot{
		crops:  crops,
		index:  index,
		source: source,
		loaded: loaded,
	}
	if loaded {
		snap.refreshedAt = time.Now()
	}
	return snap
}

// cropCatalogResponse is one page of the remote catalog API
type cropCatalogResponse struct {
	Success    bool                 `json:"success"`
	Data       []cropCatalogRecord  `json:"data"`
	Pagination *cropCatalogPageInfo `json:"pagination"`
	Error      string               `json:"error,omitempty"`
}

type cropCatalogRecord struct {
	Name string `json:"name"`
}

type cropCatalogPageInfo struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// NewCropCatalog creates a catalog serving DefaultCrops until Refresh runs.
// An empty baseURL disables remote fetching.
func NewCropCatalog(baseURL, apiKey string, logger *zap.Logger) *CropCatalog {
	return &CropCatalog{
		baseURL:  normalizeBaseURL(baseURL),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: cropCatalogTimeout},
		logger:   logger,
		snapshot: atomic.NewPointer(newCatalogSnapshot(fallbackCrops(), CatalogSourceFallback, false)),
	}
}

// normalizeBaseURL adds https:// when no scheme is present
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func fallbackCrops() []string {
	crops := make([]string, len(DefaultCrops))
	copy(crops, DefaultCrops)
	return crops
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeCropName lowercases a crop name, replaces whitespace runs with a
// single underscore and strips parentheses: "Beans (Common)" -> "beans_common".
func NormalizeCropName(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = whitespaceRun.ReplaceAllString(id, "_")
	return strings.NewReplacer("(", "", ")", "").Replace(id)
}

// Start refreshes the catalog once and then every interval until ctx is
// cancelled. A zero interval means a single refresh.
func (c *CropCatalog) Start(ctx context.Context, interval time.Duration) {
	c.Refresh(ctx)
	if interval <= 0 {
		return
	}

	c.logger.Info("crop catalog: periodic refresh enabled", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("crop catalog: refresh loop stopping")
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// Refresh fetches every catalog page and replaces the snapshot. It never
// fails: on any error the static fallback list is installed and returned.
func (c *CropCatalog) Refresh(ctx context.Context) []string {
	if c.baseURL == "" {
		c.logger.Info("crop catalog: no catalog URL configured, using fallback list", zap.Int("crops", len(DefaultCrops)))
		return c.install(fallbackCrops(), CatalogSourceFallback)
	}

	start := time.Now()
	crops, err := c.fetchAll(ctx)
	if err != nil {
		c.logger.Warn("crop catalog: fetch failed, using fallback list",
			zap.Error(err),
			zap.Int("crops", len(DefaultCrops)))
		metrics.CatalogRefreshesTotal.WithLabelValues(CatalogSourceFallback).Inc()
		return c.install(fallbackCrops(), CatalogSourceFallback)
	}

	c.logger.Info("crop catalog: loaded from remote",
		zap.Int("crops", len(crops)),
		zap.Duration("took", time.Since(start)))
	metrics.CatalogRefreshesTotal.WithLabelValues(CatalogSourceRemote).Inc()
	return c.install(crops, CatalogSourceRemote)
}

func (c *CropCatalog) install(crops []string, source string) []string {
	c.snapshot.Store(newCatalogSnapshot(crops, source, true))
	metrics.CatalogSize.Set(float64(len(crops)))

	out := make([]string, len(crops))
	copy(out, crops)
	return out
}

// fetchAll walks the pages in order. Any failure discards partial results.
func (c *CropCatalog) fetchAll(ctx context.Context) ([]string, error) {
	var crops []string
	for page := 1; ; page++ {
		if page > cropCatalogMaxPages {
			return nil, fmt.Errorf("catalog exceeded %d pages", cropCatalogMaxPages)
		}

		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		for _, record := range resp.Data {
			if id := NormalizeCropName(record.Name); id != "" {
				crops = append(crops, id)
			}
		}

		if resp.Pagination.Page >= resp.Pagination.TotalPages {
			return crops, nil
		}
	}
}

func (c *CropCatalog) fetchPage(ctx context.Context, page int) (*cropCatalogResponse, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("limit", fmt.Sprintf("%d", cropCatalogPageSize))
	reqURL := fmt.Sprintf("%s/crops?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch crops: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("crop catalog API error: status %d", resp.StatusCode)
	}

	var pageResp cropCatalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !pageResp.Success {
		if pageResp.Error != "" {
			return nil, fmt.Errorf("crop catalog API error: %s", pageResp.Error)
		}
		return nil, fmt.Errorf("crop catalog API returned unsuccessful response")
	}
	if pageResp.Pagination == nil {
		return nil, fmt.Errorf("crop catalog response missing pagination")
	}

	return &pageResp, nil
}

// Snapshot returns a copy of the current crop identifiers in catalog order
func (c *CropCatalog) Snapshot() []string {
	snap := c.snapshot.Load()
	out := make([]string, len(snap.crops))
	copy(out, snap.crops)
	return out
}

// Size returns the number of crops in the current snapshot
func (c *CropCatalog) Size() int {
	return len(c.snapshot.Load().crops)
}

// Contains reports whether id is in the current snapshot
func (c *CropCatalog) Contains(id string) bool {
	_, ok := c.snapshot.Load().index[id]
	return ok
}

// CatalogStatus describes the current snapshot for the info endpoint
type CatalogStatus struct {
	Size        int        `json:"size"`
	Source      string     `json:"source"`
	Loaded      bool       `json:"loaded"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
}

// Status returns size, source and refresh state of the current snapshot
func (c *CropCatalog) Status() CatalogStatus {
	snap := c.snapshot.Load()
	status := CatalogStatus{
		Size:   len(snap.crops),
		Source: snap.source,
		Loaded: snap.loaded,
	}
	if snap.loaded {
		t := snap.refreshedAt
		status.LastRefresh = &t
	}
	return status
}
