// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package source is the request client for the notification server of
// record. It fetches notification pages and unread counts and submits
// read/delete mutations. The server's historical list responses named
// the payload field inconsistently (records, list, or rows); this
// client normalizes every accepted shape into the canonical
// notification.Notification once, at this boundary, so the ambiguity
// never reaches the reconciliation engine.
//
// All API errors are returned as [*APIError] carrying the server error
// code and HTTP status, extractable with errors.As.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vanvanhasnophi/a-final-work-sub000/lib/netutil"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the notification API base (e.g. "https://api.roomx.example").
	BaseURL string

	// HTTPClient is used for all requests. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// SessionToken authorizes requests; sent as a bearer token.
	SessionToken string
}

// Client talks to the notification API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	token      string
}

// NewClient creates a notification API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("source: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("source: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		token:      config.SessionToken,
	}, nil
}

// ListResponse is one page of notifications, already normalized.
type ListResponse struct {
	Records []notification.Notification
	Total   int
}

// List fetches one page of the user's notifications.
func (c *Client) List(ctx context.Context, userID string, page, pageSize int) (*ListResponse, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("page", fmt.Sprint(page))
	query.Set("pageSize", fmt.Sprint(pageSize))

	body, err := c.doRequest(ctx, http.MethodGet, "/api/notifications", query, nil)
	if err != nil {
		return nil, fmt.Errorf("source: listing notifications: %w", err)
	}
	return parseListResponse(body, c.logger)
}

// UnreadCount fetches the server's unread notification count. This is
// the cheap endpoint the poller degrades to when the full list fetch
// fails.
func (c *Client) UnreadCount(ctx context.Context, userID string) (int, error) {
	query := url.Values{}
	query.Set("userId", userID)

	body, err := c.doRequest(ctx, http.MethodGet, "/api/notifications/unread-count", query, nil)
	if err != nil {
		return 0, fmt.Errorf("source: fetching unread count: %w", err)
	}

	var response struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, fmt.Errorf("source: parsing unread count: %w", err)
	}
	return response.UnreadCount, nil
}

// MarkRead marks one notification read on the server.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id) + "/read"
	if _, err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("source: marking %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification of the user read on the server.
func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	query := url.Values{}
	query.Set("userId", userID)
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/notifications/read-all", query, nil); err != nil {
		return fmt.Errorf("source: marking all read: %w", err)
	}
	return nil
}

// Delete removes one notification from the server.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("source: deleting %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every notification of the user from the server.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	query := url.Values{}
	query.Set("userId", userID)
	if _, err := c.doRequest(ctx, http.MethodDelete, "/api/notifications", query, nil); err != nil {
		return fmt.Errorf("source: deleting all: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request and returns the response body.
// On 2xx, returns the body. On any other status, returns a *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
		// Non-JSON or unstructured error body; keep the raw text for
		// diagnostics.
		return nil, &APIError{
			Code:       CodeUnknown,
			Message:    strings.TrimSpace(string(responseBody)),
			StatusCode: response.StatusCode,
		}
	}
	apiErr.StatusCode = response.StatusCode
	return nil, &apiErr
}
