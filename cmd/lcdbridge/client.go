package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lcdbridge/internal/daemon"
)

const clientTimeout = 10 * time.Second

// apiClient talks to the daemon's local HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{base: base, http: &http.Client{Timeout: clientTimeout}}
}

func (c *apiClient) info(ctx context.Context) (daemon.InfoResponse, error) {
	var info daemon.InfoResponse
	err := c.do(ctx, http.MethodGet, "/", nil, &info)
	return info, err
}

func (c *apiClient) uploads(ctx context.Context, limit int) (daemon.HistoryResponse, error) {
	var resp daemon.HistoryResponse
	path := "/gif/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// post sends body (nil for an empty request) to a control route.
func (c *apiClient) post(ctx context.Context, path string, body any) (daemon.Ack, error) {
	var ack daemon.Ack
	err := c.do(ctx, http.MethodPost, path, body, &ack)
	return ack, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.wrapDialError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *apiClient) wrapDialError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start the daemon with `lcdbridge run`", c.base)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
