package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHost = "http://localhost:11434"

// Model is one entry from the server's tag list.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client covers the native endpoints the run needs before any agent starts:
// the tag list for model presence and the version banner. Conversation
// traffic goes through the REPL or the OpenAI-compatible endpoint instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a preflight client for the given host. An empty host means
// the default local server; a nil httpClient gets a short-timeout default.
func NewClient(host string, httpClient *http.Client) *Client {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = defaultHost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: host, httpClient: httpClient}
}

// Host returns the base URL the client targets.
func (c *Client) Host() string {
	return c.baseURL
}

// Available reports whether the server answers its tag endpoint.
func (c *Client) Available(ctx context.Context) error {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return fmt.Errorf("ollama at %s is not reachable: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama at %s: %s", c.baseURL, responseError(resp))
	}
	return nil
}

// Models lists the models the server has pulled.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: %s", responseError(resp))
	}

	var payload struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return payload.Models, nil
}

// HasModel reports whether name is present in the tag list. A missing tag on
// either side is treated as :latest, matching the CLI's own shorthand.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("model name is required")
	}
	models, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	want := canonicalTag(name)
	for _, m := range models {
		if canonicalTag(m.Name) == want {
			return true, nil
		}
	}
	return false, nil
}

// Version returns the server's reported version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "/api/version")
	if err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server version: %s", responseError(resp))
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode version: %w", err)
	}
	return payload.Version, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.httpClient.Do(request)
}

func canonicalTag(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}

func responseError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return resp.Status
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return payload.Error
	}
	return resp.Status + ": " + text
}
