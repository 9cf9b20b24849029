// Package tempo is a minimal client for the Tempo time-tracking REST API
package tempo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://api.tempo.io/4"

// Client talks to the Tempo REST API
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// NewClient creates a Tempo client authenticated with an API token. An
// empty baseURL selects the public Tempo cloud endpoint.
func NewClient(baseURL, apiToken string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http:     &http.Client{},
	}
}

// Worklog is one time-tracking entry to record against an issue
type Worklog struct {
	IssueID          string
	TimeSpentSeconds int
	StartDate        string // YYYY-MM-DD
	StartTime        string // HH:MM:SS
	Description      string
	AuthorAccountID  string
	AccountKey       string
}

type worklogRequest struct {
	IssueID          string             `json:"issueId"`
	TimeSpentSeconds int                `json:"timeSpentSeconds"`
	StartDate        string             `json:"startDate"`
	StartTime        string             `json:"startTime"`
	Description      string             `json:"description"`
	AuthorAccountID  string             `json:"authorAccountId"`
	Attributes       []worklogAttribute `json:"attributes,omitempty"`
}

type worklogAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreateWorklog records a worklog entry
func (c *Client) CreateWorklog(ctx context.Context, worklog Worklog) error {
	request := worklogRequest{
		IssueID:          worklog.IssueID,
		TimeSpentSeconds: worklog.TimeSpentSeconds,
		StartDate:        worklog.StartDate,
		StartTime:        worklog.StartTime,
		Description:      worklog.Description,
		AuthorAccountID:  worklog.AuthorAccountID,
	}
	if worklog.AccountKey != "" {
		request.Attributes = []worklogAttribute{{Key: "_Account_", Value: worklog.AccountKey}}
	}

	return c.doJSON(ctx, http.MethodPost, "/worklogs", request, nil)
}

// Account is one Tempo account usable for time tracking
type Account struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type accountsResponse struct {
	Results []Account `json:"results"`
}

// Accounts lists all Tempo accounts
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var response accountsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/accounts", nil, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("tempo request failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		message, _ := io.ReadAll(io.LimitReader(response.Body, 2048))
		return fmt.Errorf("tempo returned %d: %s", response.StatusCode, strings.TrimSpace(string(message)))
	}

	if result != nil {
		if err := json.NewDecoder(response.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode tempo response: %w", err)
		}
	}

	return nil
}
