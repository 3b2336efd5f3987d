package schemas

// GitHubSchemas returns schemas for GitHub tools.
func GitHubSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"github_search_repositories": {
			Description: "Search GitHub repositories using the GitHub search syntax (e.g. 'language:go topic:cli').",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query in GitHub search syntax",
					},
					"sort": map[string]any{
						"type":        "string",
						"description": "Sort order: stars, forks, or updated (default: best match)",
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "Maximum number of results (default: 10, max: 50)",
					},
				},
				"required": []string{"query"},
			},
		},
		"github_get_repository": {
			Description: "Get details for a single GitHub repository (stars, forks, open issues, default branch).",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"owner": map[string]any{
						"type":        "string",
						"description": "Repository owner (user or organization)",
					},
					"repo": map[string]any{
						"type":        "string",
						"description": "Repository name",
					},
				},
				"required": []string{"owner", "repo"},
			},
		},
		"github_list_issues": {
			Description: "List issues for a GitHub repository. Pull requests are included and flagged with is_pull_request.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"owner": map[string]any{
						"type":        "string",
						"description": "Repository owner (user or organization)",
					},
					"repo": map[string]any{
						"type":        "string",
						"description": "Repository name",
					},
					"state": map[string]any{
						"type":        "string",
						"description": "Issue state filter: open, closed, or all (default: open)",
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "Maximum number of results (default: 20, max: 50)",
					},
				},
				"required": []string{"owner", "repo"},
			},
		},
		"github_create_issue": {
			Description: "Create a new issue in a GitHub repository. Requires a token with write access.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"owner": map[string]any{
						"type":        "string",
						"description": "Repository owner (user or organization)",
					},
					"repo": map[string]any{
						"type":        "string",
						"description": "Repository name",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Issue title",
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Issue body in Markdown",
					},
					"labels": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Labels to apply to the issue",
					},
				},
				"required": []string{"owner", "repo", "title"},
			},
		},
		"github_search_pull_requests": {
			Description: "Search pull requests across GitHub using the GitHub search syntax. 'is:pr' is appended automatically.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query in GitHub search syntax",
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "Maximum number of results (default: 10, max: 50)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}
