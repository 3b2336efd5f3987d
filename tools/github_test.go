package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestGitHubClient(t *testing.T, handler http.HandlerFunc) *GitHubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    srv.URL,
		token:      "test-token",
	}
}

func TestGitHubSearchRepositories(t *testing.T) {
	client := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "language:go cli" {
			t.Errorf("unexpected query: %q", got)
		}
		_, _ = w.Write([]byte(`{
			"total_count": 1,
			"items": [{"full_name": "acme/widget", "description": "a widget", "html_url": "https://example.com/acme/widget", "stargazers_count": 42, "language": "Go"}]
		}`))
	})

	reg := NewRegistry(zerolog.Nop())
	reg.RegisterGitHubTools(client)

	args := json.RawMessage(`{"query": "language:go cli"}`)
	result, err := reg.Handle(context.Background(), "github_search_repositories", "test-agent", args)
	if err != nil {
		t.Fatalf("github_search_repositories failed: %v", err)
	}

	resultMap, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", result)
	}
	if resultMap["total_count"] != 1 {
		t.Errorf("expected total_count=1, got %v", resultMap["total_count"])
	}
	repos, ok := resultMap["repositories"].([]map[string]any)
	if !ok || len(repos) != 1 {
		t.Fatalf("expected 1 repository, got %v", resultMap["repositories"])
	}
	if repos[0]["full_name"] != "acme/widget" {
		t.Errorf("expected full_name=acme/widget, got %v", repos[0]["full_name"])
	}
	if repos[0]["stars"] != 42 {
		t.Errorf("expected stars=42, got %v", repos[0]["stars"])
	}
}

func TestGitHubListIssues(t *testing.T) {
	client := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/issues" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("state"); got != "open" {
			t.Errorf("expected default state=open, got %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"number": 7, "title": "crash on start", "state": "open", "html_url": "https://example.com/7", "user": {"login": "alice"}},
			{"number": 8, "title": "add feature", "state": "open", "html_url": "https://example.com/8", "user": {"login": "bob"}, "pull_request": {}}
		]`))
	})

	reg := NewRegistry(zerolog.Nop())
	reg.RegisterGitHubTools(client)

	args := json.RawMessage(`{"owner": "acme", "repo": "widget"}`)
	result, err := reg.Handle(context.Background(), "github_list_issues", "test-agent", args)
	if err != nil {
		t.Fatalf("github_list_issues failed: %v", err)
	}

	issues, ok := result.([]map[string]any)
	if !ok {
		t.Fatalf("expected []map[string]any, got %T", result)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if issues[0]["author"] != "alice" {
		t.Errorf("expected author=alice, got %v", issues[0]["author"])
	}
	if issues[0]["is_pull_request"] != false {
		t.Errorf("expected issue 7 not to be a pull request")
	}
	if issues[1]["is_pull_request"] != true {
		t.Errorf("expected issue 8 to be flagged as a pull request")
	}
}

func TestGitHubCreateIssueValidation(t *testing.T) {
	client := NewGitHubClient("")
	reg := NewRegistry(zerolog.Nop())
	reg.RegisterGitHubTools(client)

	tests := []struct {
		name string
		args string
		want string
	}{
		{"missing owner", `{"repo": "widget", "title": "x"}`, "owner and repo"},
		{"missing title", `{"owner": "acme", "repo": "widget"}`, "title is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Handle(context.Background(), "github_create_issue", "test-agent", json.RawMessage(tt.args))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestGitHubAPIError(t *testing.T) {
	client := newTestGitHubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	})

	reg := NewRegistry(zerolog.Nop())
	reg.RegisterGitHubTools(client)

	args := json.RawMessage(`{"owner": "acme", "repo": "missing"}`)
	_, err := reg.Handle(context.Background(), "github_get_repository", "test-agent", args)
	if err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}
	if !strings.Contains(err.Error(), "Not Found") {
		t.Errorf("expected error to carry API message, got: %v", err)
	}
}
