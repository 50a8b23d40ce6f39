package ollama

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func requireLocalListener(t *testing.T) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("local listener unavailable for httptest")
	}
	_ = listener.Close()
}

func tagServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/tags" {
			t.Fatalf("expected path /api/tags, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAvailable(t *testing.T) {
	requireLocalListener(t)
	server := tagServer(t, `{"models":[]}`)

	client := NewClient(server.URL, server.Client())
	if err := client.Available(context.Background()); err != nil {
		t.Fatalf("available: %v", err)
	}
}

func TestAvailableUnreachable(t *testing.T) {
	requireLocalListener(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, nil)
	err := client.Available(context.Background())
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Fatalf("expected reachability error, got %v", err)
	}
}

func TestModels(t *testing.T) {
	requireLocalListener(t)
	server := tagServer(t, `{"models":[{"name":"gemma3:4b","size":3338801804},{"name":"llama3:latest"}]}`)

	client := NewClient(server.URL, server.Client())
	models, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "gemma3:4b" || models[0].Size != 3338801804 {
		t.Fatalf("unexpected first model: %+v", models[0])
	}
}

func TestModelsServerError(t *testing.T) {
	requireLocalListener(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL, server.Client()).Models(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected server error message, got %v", err)
	}
}

func TestHasModel(t *testing.T) {
	requireLocalListener(t)
	server := tagServer(t, `{"models":[{"name":"gemma3:4b"},{"name":"llama3:latest"}]}`)
	client := NewClient(server.URL, server.Client())

	cases := []struct {
		name string
		want bool
	}{
		{"gemma3:4b", true},
		{"llama3", true},
		{"llama3:latest", true},
		{"gemma3", false},
		{"mistral", false},
	}
	for _, tc := range cases {
		got, err := client.HasModel(context.Background(), tc.name)
		if err != nil {
			t.Fatalf("has model %s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("has model %s = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHasModelRequiresName(t *testing.T) {
	client := NewClient("", nil)
	if _, err := client.HasModel(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank model name")
	}
}

func TestVersion(t *testing.T) {
	requireLocalListener(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Fatalf("expected path /api/version, got %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"version":"0.5.4"}`)
	}))
	t.Cleanup(server.Close)

	version, err := NewClient(server.URL, server.Client()).Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != "0.5.4" {
		t.Fatalf("expected 0.5.4, got %q", version)
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("  http://localhost:11434/  ", nil)
	if client.Host() != "http://localhost:11434" {
		t.Fatalf("expected trimmed host, got %q", client.Host())
	}
	if NewClient("", nil).Host() != defaultHost {
		t.Fatalf("expected default host fallback")
	}
}
