/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"namedraft/internal/storage"
)

// Client talks to the downstream authoring tool (or a Hub). Requests are throttled.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
	limiter *rate.Limiter
}

// Receipt acknowledges a published page.
type Receipt struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// NewClient creates a client. baseURL may include a trailing slash. perSecond <= 0 disables throttling.
func NewClient(baseURL, token string, timeout time.Duration, perSecond float64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/perSecond)), 2)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
		limiter: lim,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server %s %s: %s %s", method, u.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	switch d := dest.(type) {
	case nil:
		return nil
	case *[]byte:
		*d, err = io.ReadAll(resp.Body)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(dest)
	}
}

// Publish posts a downstream document under name.
func (c *Client) Publish(ctx context.Context, name string, doc []byte) (Receipt, error) {
	var rc Receipt
	err := c.do(ctx, http.MethodPost, "/api/names?name="+url.QueryEscape(name), doc, &rc)
	return rc, err
}

// List returns the names known to the remote side.
func (c *Client) List(ctx context.Context) ([]storage.Entry, error) {
	var list []storage.Entry
	if err := c.do(ctx, http.MethodGet, "/api/names", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Fetch downloads the raw document stored under name.
func (c *Client) Fetch(ctx context.Context, name string) ([]byte, error) {
	var b []byte
	if err := c.do(ctx, http.MethodGet, "/api/names/"+url.PathEscape(name), nil, &b); err != nil {
		return nil, err
	}
	return b, nil
}

// IssueToken asks the remote side for a bearer token for subject.
func (c *Client) IssueToken(ctx context.Context, subject string) (string, error) {
	body, _ := json.Marshal(map[string]any{"subject": subject})
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}
