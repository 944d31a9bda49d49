// client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"repodeck/internal/api"
	"repodeck/internal/diff"
	"repodeck/internal/errors"
	"repodeck/internal/git"
	"repodeck/internal/history"
	"repodeck/internal/squash"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the server at baseURL. Squash requests can run
// a full rebase, so the timeout is generous.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errors.Error
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("unexpected status: %s", resp.Status)
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Status(ctx context.Context, repoPath string) ([]git.FileStatus, error) {
	var resp api.StatusResponse
	if err := c.post(ctx, "/api/status", api.RepoRequest{RepoPath: repoPath}, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *Client) Log(ctx context.Context, repoPath string, maxCount int) ([]git.Commit, error) {
	var resp api.LogResponse
	if err := c.post(ctx, "/api/log", api.LogRequest{RepoPath: repoPath, MaxCount: maxCount}, &resp); err != nil {
		return nil, err
	}
	return resp.Commits, nil
}

func (c *Client) Diff(ctx context.Context, repoPath, filePath string, staged bool) (*api.DiffResponse, error) {
	var resp api.DiffResponse
	if err := c.post(ctx, "/api/diff", api.DiffRequest{RepoPath: repoPath, FilePath: filePath, Staged: staged}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stage stages h, or the whole file when h is nil
func (c *Client) Stage(ctx context.Context, repoPath, filePath string, h *diff.Hunk) error {
	return c.post(ctx, "/api/stage", api.StageRequest{RepoPath: repoPath, FilePath: filePath, Hunk: h}, nil)
}

func (c *Client) Squash(ctx context.Context, req squash.Request) (*squash.Result, error) {
	var res squash.Result
	if err := c.post(ctx, "/api/squash", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) History(ctx context.Context, repoPath string) ([]*history.Record, error) {
	var resp api.HistoryResponse
	if err := c.post(ctx, "/api/history", api.RepoRequest{RepoPath: repoPath}, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}
