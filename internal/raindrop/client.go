package raindrop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

const DefaultBaseURL = "https://api.raindrop.io/rest/v1"

var (
	ErrNoToken = errors.New("raindrop api token not configured")
	ErrNoLink  = errors.New("quake has no link to bookmark")
)

type Client struct {
	apiToken string
	baseURL  string
	client   *http.Client
}

type RaindropItem struct {
	Link    string   `json:"link"`
	Title   string   `json:"title"`
	Excerpt string   `json:"excerpt,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type RaindropResponse struct {
	Result bool          `json:"result"`
	Item   *RaindropItem `json:"item,omitempty"`
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL.
func NewClient(apiToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiToken: apiToken,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SaveQuake bookmarks a quake's link, tagged with its category and
// magnitude.
func (c *Client) SaveQuake(ctx context.Context, quake models.Entry) error {
	if c.apiToken == "" {
		return ErrNoToken
	}
	if quake.Link == "" {
		return ErrNoLink
	}

	item := RaindropItem{
		Link:    quake.Link,
		Title:   quake.Title,
		Excerpt: Excerpt(quake),
		Tags:    tags(quake),
	}

	jsonData, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling quake: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/raindrop", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result RaindropResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !result.Result {
		return fmt.Errorf("Raindrop API returned failure")
	}

	return nil
}

// TestConnection tests the API token by making a simple request
func (c *Client) TestConnection(ctx context.Context) error {
	if c.apiToken == "" {
		return ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do sends an authorized request and turns non-200 responses into errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to Raindrop: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Raindrop API error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// Excerpt summarizes a quake in one line: magnitude, distance and time.
func Excerpt(quake models.Entry) string {
	var parts []string
	if quake.Magnitude != nil {
		parts = append(parts, "M"+strconv.FormatFloat(*quake.Magnitude, 'f', 1, 64))
	}
	if quake.DistanceToHome != nil {
		parts = append(parts, fmt.Sprintf("%.0f km from home", *quake.DistanceToHome))
	}
	if quake.Published != nil {
		parts = append(parts, quake.Published.UTC().Format("2006-01-02 15:04 MST"))
	}
	if quake.Attribution != "" {
		parts = append(parts, quake.Attribution)
	}
	return strings.Join(parts, " · ")
}

func tags(quake models.Entry) []string {
	t := []string{"earthquake"}
	if quake.Category != "" {
		t = append(t, quake.Category)
	}
	return t
}
