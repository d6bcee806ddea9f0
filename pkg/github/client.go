// Package github wraps the GitHub REST API surface this project uses:
// repository, branch and release management, plus the release lookup
// behind the startup update check.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.github.com"

type Client struct {
	client *resty.Client
}

type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	Fork          bool   `json:"fork"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type Release struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Prerelease bool   `json:"prerelease"`
	HTMLURL    string `json:"html_url"`
}

// RepoConfig carries the fields for repository creation.
type RepoConfig struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Private           bool   `json:"private"`
	AutoInit          bool   `json:"auto_init"`
	GitignoreTemplate string `json:"gitignore_template,omitempty"`
	LicenseTemplate   string `json:"license_template,omitempty"`
	HasIssues         bool   `json:"has_issues"`
	HasProjects       bool   `json:"has_projects"`
	HasWiki           bool   `json:"has_wiki"`
}

type apiError struct {
	Message string `json:"message"`
}

func NewClient(token string) *Client {
	return NewClientWithBaseURL(defaultBaseURL, token)
}

// NewClientWithBaseURL targets a non-default API endpoint, e.g. a
// GitHub Enterprise instance.
func NewClientWithBaseURL(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Authorization", "token "+token).
		SetHeader("Accept", "application/vnd.github.v3+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")

	return &Client{client: client}
}

func (c *Client) do(ctx context.Context, method, url string, body, result interface{}) error {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	var apiErr apiError
	req.SetError(&apiErr)

	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("GitHub 请求失败: %w", err)
	}

	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), msg)
	}

	return nil
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, "GET", "/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListRepos(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	if err := c.do(ctx, "GET", "/user/repos?per_page=100", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repository, error) {
	var r Repository
	if err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateRepo(ctx context.Context, cfg RepoConfig) (*Repository, error) {
	var r Repository
	if err := c.do(ctx, "POST", "/user/repos", cfg, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UpdateRepo(ctx context.Context, owner, repo string, fields map[string]interface{}) (*Repository, error) {
	var r Repository
	if err := c.do(ctx, "PATCH", fmt.Sprintf("/repos/%s/%s", owner, repo), fields, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteRepo(ctx context.Context, owner, repo string) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/repos/%s/%s", owner, repo), nil, nil)
}

func (c *Client) ForkRepo(ctx context.Context, owner, repo string) (*Repository, error) {
	var r Repository
	if err := c.do(ctx, "POST", fmt.Sprintf("/repos/%s/%s/forks", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]Branch, error) {
	var branches []Branch
	if err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/branches", owner, repo), nil, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, baseSHA string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": baseSHA,
	}
	return c.do(ctx, "POST", fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo), body, nil)
}

func (c *Client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, branch), nil, nil)
}

func (c *Client) ProtectBranch(ctx context.Context, owner, repo, branch string) error {
	body := map[string]interface{}{
		"required_status_checks":        nil,
		"enforce_admins":                true,
		"required_pull_request_reviews": nil,
		"restrictions":                  nil,
		"allow_force_pushes":            false,
		"allow_deletions":               false,
	}
	return c.do(ctx, "PUT", fmt.Sprintf("/repos/%s/%s/branches/%s/protection", owner, repo, branch), body, nil)
}

func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	var releases []Release
	if err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/releases", owner, repo), nil, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) CreateRelease(ctx context.Context, owner, repo, tag, name, body string, prerelease bool) (*Release, error) {
	reqBody := map[string]interface{}{
		"tag_name":   tag,
		"name":       name,
		"body":       body,
		"prerelease": prerelease,
	}
	var r Release
	if err := c.do(ctx, "POST", fmt.Sprintf("/repos/%s/%s/releases", owner, repo), reqBody, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRelease returns the most recent published release; used by the
// startup update check.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	var r Release
	if err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/releases/latest", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
