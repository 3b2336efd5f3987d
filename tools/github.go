package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubClient is a minimal GitHub REST v3 client used by the github tools.
type GitHubClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewGitHubClient creates a GitHub client. token may be empty for
// unauthenticated access (subject to much lower rate limits).
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    githubAPIBaseURL,
		token:      token,
	}
}

func (g *GitHubClient) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read github response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ghErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &ghErr)
		if ghErr.Message != "" {
			return nil, fmt.Errorf("github API error (status %d): %s", resp.StatusCode, ghErr.Message)
		}
		return nil, fmt.Errorf("github API error: status %d", resp.StatusCode)
	}

	return json.RawMessage(data), nil
}

// RegisterGitHubTools registers GitHub repository and issue tools.
func (r *Registry) RegisterGitHubTools(client *GitHubClient) {
	r.logger.Info().Msg("Registering github tools in registry")

	r.Register("github_search_repositories", func(ctx context.Context, agentID string, args json.RawMessage) (any, error) {
		var payload struct {
			Query string `json:"query"`
			Sort  string `json:"sort"`  // stars, forks, updated
			Limit int    `json:"limit"` // max results, default 10
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		if payload.Limit <= 0 || payload.Limit > 50 {
			payload.Limit = 10
		}

		q := url.Values{}
		q.Set("q", payload.Query)
		q.Set("per_page", strconv.Itoa(payload.Limit))
		if payload.Sort != "" {
			q.Set("sort", payload.Sort)
		}

		raw, err := client.do(ctx, http.MethodGet, "/search/repositories", q, nil)
		if err != nil {
			return nil, err
		}

		var result struct {
			TotalCount int `json:"total_count"`
			Items      []struct {
				FullName    string `json:"full_name"`
				Description string `json:"description"`
				HTMLURL     string `json:"html_url"`
				Stars       int    `json:"stargazers_count"`
				Language    string `json:"language"`
			} `json:"items"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}

		out := make([]map[string]any, 0, len(result.Items))
		for _, item := range result.Items {
			out = append(out, map[string]any{
				"full_name":   item.FullName,
				"description": item.Description,
				"url":         item.HTMLURL,
				"stars":       item.Stars,
				"language":    item.Language,
			})
		}
		return map[string]any{
			"total_count":  result.TotalCount,
			"repositories": out,
		}, nil
	})

	r.Register("github_get_repository", func(ctx context.Context, agentID string, args json.RawMessage) (any, error) {
		var payload struct {
			Owner string `json:"owner"`
			Repo  string `json:"repo"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.Owner == "" || payload.Repo == "" {
			return nil, fmt.Errorf("owner and repo are required")
		}

		raw, err := client.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", url.PathEscape(payload.Owner), url.PathEscape(payload.Repo)), nil, nil)
		if err != nil {
			return nil, err
		}

		var repo struct {
			FullName        string `json:"full_name"`
			Description     string `json:"description"`
			HTMLURL         string `json:"html_url"`
			Stars           int    `json:"stargazers_count"`
			Forks           int    `json:"forks_count"`
			OpenIssuesCount int    `json:"open_issues_count"`
			Language        string `json:"language"`
			DefaultBranch   string `json:"default_branch"`
		}
		if err := json.Unmarshal(raw, &repo); err != nil {
			return nil, fmt.Errorf("failed to decode repository: %w", err)
		}
		return map[string]any{
			"full_name":      repo.FullName,
			"description":    repo.Description,
			"url":            repo.HTMLURL,
			"stars":          repo.Stars,
			"forks":          repo.Forks,
			"open_issues":    repo.OpenIssuesCount,
			"language":       repo.Language,
			"default_branch": repo.DefaultBranch,
		}, nil
	})

	r.Register("github_list_issues", func(ctx context.Context, agentID string, args json.RawMessage) (any, error) {
		var payload struct {
			Owner string `json:"owner"`
			Repo  string `json:"repo"`
			State string `json:"state"` // open, closed, all
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.Owner == "" || payload.Repo == "" {
			return nil, fmt.Errorf("owner and repo are required")
		}
		if payload.State == "" {
			payload.State = "open"
		}
		if payload.Limit <= 0 || payload.Limit > 50 {
			payload.Limit = 20
		}

		q := url.Values{}
		q.Set("state", payload.State)
		q.Set("per_page", strconv.Itoa(payload.Limit))

		raw, err := client.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/issues", url.PathEscape(payload.Owner), url.PathEscape(payload.Repo)), q, nil)
		if err != nil {
			return nil, err
		}

		var issues []struct {
			Number  int    `json:"number"`
			Title   string `json:"title"`
			State   string `json:"state"`
			HTMLURL string `json:"html_url"`
			User    struct {
				Login string `json:"login"`
			} `json:"user"`
			PullRequest *struct{} `json:"pull_request"`
		}
		if err := json.Unmarshal(raw, &issues); err != nil {
			return nil, fmt.Errorf("failed to decode issues: %w", err)
		}

		out := make([]map[string]any, 0, len(issues))
		for _, issue := range issues {
			out = append(out, map[string]any{
				"number":          issue.Number,
				"title":           issue.Title,
				"state":           issue.State,
				"url":             issue.HTMLURL,
				"author":          issue.User.Login,
				"is_pull_request": issue.PullRequest != nil,
			})
		}
		return out, nil
	})

	r.Register("github_create_issue", func(ctx context.Context, agentID string, args json.RawMessage) (any, error) {
		var payload struct {
			Owner  string   `json:"owner"`
			Repo   string   `json:"repo"`
			Title  string   `json:"title"`
			Body   string   `json:"body"`
			Labels []string `json:"labels"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.Owner == "" || payload.Repo == "" {
			return nil, fmt.Errorf("owner and repo are required")
		}
		if payload.Title == "" {
			return nil, fmt.Errorf("title is required")
		}

		body := map[string]any{"title": payload.Title}
		if payload.Body != "" {
			body["body"] = payload.Body
		}
		if len(payload.Labels) > 0 {
			body["labels"] = payload.Labels
		}

		raw, err := client.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/issues", url.PathEscape(payload.Owner), url.PathEscape(payload.Repo)), nil, body)
		if err != nil {
			return nil, err
		}

		var issue struct {
			Number  int    `json:"number"`
			Title   string `json:"title"`
			HTMLURL string `json:"html_url"`
			State   string `json:"state"`
		}
		if err := json.Unmarshal(raw, &issue); err != nil {
			return nil, fmt.Errorf("failed to decode created issue: %w", err)
		}
		return map[string]any{
			"number": issue.Number,
			"title":  issue.Title,
			"url":    issue.HTMLURL,
			"state":  issue.State,
		}, nil
	})

	r.Register("github_search_pull_requests", func(ctx context.Context, agentID string, args json.RawMessage) (any, error) {
		var payload struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		if payload.Limit <= 0 || payload.Limit > 50 {
			payload.Limit = 10
		}

		q := url.Values{}
		q.Set("q", payload.Query+" is:pr")
		q.Set("per_page", strconv.Itoa(payload.Limit))

		raw, err := client.do(ctx, http.MethodGet, "/search/issues", q, nil)
		if err != nil {
			return nil, err
		}

		var result struct {
			TotalCount int `json:"total_count"`
			Items      []struct {
				Number  int    `json:"number"`
				Title   string `json:"title"`
				State   string `json:"state"`
				HTMLURL string `json:"html_url"`
			} `json:"items"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}

		out := make([]map[string]any, 0, len(result.Items))
		for _, item := range result.Items {
			out = append(out, map[string]any{
				"number": item.Number,
				"title":  item.Title,
				"state":  item.State,
				"url":    item.HTMLURL,
			})
		}
		return map[string]any{
			"total_count":   result.TotalCount,
			"pull_requests": out,
		}, nil
	})
}
