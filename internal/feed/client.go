package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BooruClient fetches posts from a booru-style JSON API
// (GET {base}/posts.json?tags=...&limit=...).
type BooruClient struct {
	base    string
	client  HTTPClient
	timeout time.Duration
}

// NewBooruClient creates a client for the given API base URL.
func NewBooruClient(base string, client HTTPClient) *BooruClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &BooruClient{
		base:    strings.TrimRight(base, "/"),
		client:  client,
		timeout: 10 * time.Second,
	}
}

type booruPost struct {
	ID      int64  `json:"id"`
	MD5     string `json:"md5"`
	Tags    string `json:"tag_string"`
	FileURL string `json:"file_url"`
	Source  string `json:"source"`
}

// Fetch implements Source.
func (c *BooruClient) Fetch(ctx context.Context, tags string, limit int) ([]model.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("tags", tags)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/posts.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "robo-arc/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var posts []booruPost
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("parse posts: %w", err)
	}

	items := make([]model.ContentItem, 0, len(posts))
	for _, p := range posts {
		if p.FileURL == "" {
			// Posts without a visible file (takedowns, restricted
			// uploads) have nothing to deliver.
			continue
		}
		id := strconv.FormatInt(p.ID, 10)
		key := p.MD5
		if key == "" {
			key = id
		}
		items = append(items, model.ContentItem{
			ID:        id,
			DedupKey:  key,
			Tags:      strings.Fields(p.Tags),
			MediaURL:  p.FileURL,
			SourceURL: p.Source,
		})
	}
	return items, nil
}
