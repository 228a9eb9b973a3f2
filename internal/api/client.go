package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running cellard over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon at bind (host:port or full URL).
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (*StatusPayload, error) {
	var payload StatusPayload
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetRecord fetches one record. A missing key returns (nil, nil).
func (c *Client) GetRecord(ctx context.Context, key string) (*RecordPayload, error) {
	var payload RecordPayload
	err := c.do(ctx, http.MethodGet, "/api/records/"+url.PathEscape(key), nil, &payload)
	if err != nil {
		var se statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payload, nil
}

// PutRecord writes one record and returns its stored form.
func (c *Client) PutRecord(ctx context.Context, key string, value []byte) (*RecordPayload, error) {
	body := RecordPayload{Key: key, Value: value}
	var payload RecordPayload
	if err := c.do(ctx, http.MethodPut, "/api/records/"+url.PathEscape(key), body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DeleteRecord removes one record and reports whether it existed.
func (c *Client) DeleteRecord(ctx context.Context, key string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/api/records/"+url.PathEscape(key), nil, nil)
	if err != nil {
		var se statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListRecords fetches all records.
func (c *Client) ListRecords(ctx context.Context) ([]RecordPayload, error) {
	var payload ListPayload
	if err := c.do(ctx, http.MethodGet, "/api/records", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("api client: daemon address is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorPayload
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return statusError{code: resp.StatusCode, message: apiErr.Error}
		}
		return statusError{code: resp.StatusCode, message: resp.Status}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type statusError struct {
	code    int
	message string
}

func (e statusError) Error() string {
	return fmt.Sprintf("daemon responded %d: %s", e.code, e.message)
}

