// Package marketplace is the HTTP client for the marketplace REST API: users,
// categories, file uploads and projects.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/metrics"
	"github.com/m3rciful/projectbot/core/telegram/netutil"
)

const defaultTimeout = 10 * time.Second

// Options configures the client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the marketplace API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
}

// New validates options and builds a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("marketplace: base url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("marketplace: parse base url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = netutil.BuildClient(netutil.ClientOptions{
			ClientTimeout:   timeout,
			ResponseTimeout: timeout,
			RetryAttempts:   1,
			RetryBackoff:    500 * time.Millisecond,
		})
	}
	return &Client{base: base, token: opts.Token, timeout: timeout, http: hc}, nil
}

// EnsureUser returns the account for the Telegram user, creating it when missing.
// The endpoint has get-or-create semantics keyed by telegram_id.
func (c *Client) EnsureUser(ctx context.Context, p UserParams) (User, error) {
	body := map[string]any{
		"telegram_id": p.TelegramID,
		"name":        p.Name,
		"role":        p.Role,
	}
	if p.Phone != "" {
		body["phone_number"] = p.Phone
	}
	var u User
	if err := c.doJSON(ctx, "create_user", http.MethodPost, "api/users/", nil, body, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Categories fetches the whole category tree keyed by id.
func (c *Client) Categories(ctx context.Context) (map[int64]Category, error) {
	var list []Category
	if err := c.doJSON(ctx, "get_categories", http.MethodGet, "api/categories/", nil, nil, &list); err != nil {
		return nil, err
	}
	out := make(map[int64]Category, len(list))
	for _, cat := range list {
		out[cat.ID] = cat
	}
	return out, nil
}

// UploadFile sends one file as multipart form data.
func (c *Client) UploadFile(ctx context.Context, u Upload) (FileRef, error) {
	if u.Content == nil {
		return FileRef{}, errors.New("marketplace: upload without content")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	name := u.Name
	if name == "" {
		name = "attachment"
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return FileRef{}, fmt.Errorf("marketplace: multipart: %w", err)
	}
	if _, err := io.Copy(part, u.Content); err != nil {
		return FileRef{}, fmt.Errorf("marketplace: read upload: %w", err)
	}
	if u.ProjectID != nil {
		if err := mw.WriteField("project", strconv.FormatInt(*u.ProjectID, 10)); err != nil {
			return FileRef{}, fmt.Errorf("marketplace: multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return FileRef{}, fmt.Errorf("marketplace: multipart: %w", err)
	}

	var ref FileRef
	err = c.do(ctx, "upload_file", http.MethodPost, "api/files/", nil, bytes.NewReader(buf.Bytes()), mw.FormDataContentType(), &ref)
	if err != nil {
		return FileRef{}, err
	}
	return ref, nil
}

// CreateProject creates a project. Field errors come back as *ValidationError.
func (c *Client) CreateProject(ctx context.Context, p ProjectPayload) (Project, error) {
	var out Project
	if err := c.doJSON(ctx, "create_project", http.MethodPost, "api/projects/", nil, p, &out); err != nil {
		return Project{}, err
	}
	return out, nil
}

// ListProjects returns one page of projects matching f.
func (c *Client) ListProjects(ctx context.Context, f ProjectFilter) ([]Project, error) {
	q := url.Values{}
	if f.UserID != 0 {
		q.Set("user", strconv.FormatInt(f.UserID, 10))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Ordering != "" {
		q.Set("ordering", f.Ordering)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, "list_projects", http.MethodGet, "api/projects/", q, nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	var list []Project
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("marketplace: decode projects: %w", err)
		}
		return list, nil
	}
	var page struct {
		Results []Project `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("marketplace: decode projects page: %w", err)
	}
	return page.Results, nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, "ping", http.MethodGet, "api/categories/", url.Values{"limit": {"1"}}, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marketplace: %s: encode: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, q, body, contentType, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("marketplace: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	took := time.Since(start)
	if err != nil {
		c.finish(ctx, op, "fail", 0, took, err)
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.finish(ctx, op, "fail", resp.StatusCode, took, err)
		return fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		verr := &ValidationError{Status: resp.StatusCode, Fields: parseFieldErrors(payload)}
		c.finish(ctx, op, "invalid", resp.StatusCode, took, verr)
		return verr
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		err := fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, resp.StatusCode)
		c.finish(ctx, op, "fail", resp.StatusCode, took, err)
		return err
	}

	c.finish(ctx, op, "ok", resp.StatusCode, took, nil)
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("marketplace: %s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) finish(ctx context.Context, op, status string, code int, took time.Duration, err error) {
	metrics.RecordAPI(op, status, took)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("op", op),
		slog.Duration("duration", took),
	}
	if code != 0 {
		attrs = append(attrs, slog.Int("http_code", code))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.Warn(ctx, "marketplace", "api.call", attrs...)
		return
	}
	logger.Debug(ctx, "marketplace", "api.call", attrs...)
}

// parseFieldErrors flattens a DRF-style error body into field -> messages.
func parseFieldErrors(body []byte) map[string][]string {
	out := map[string][]string{}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			out["non_field_errors"] = []string{msg}
		}
		return out
	}
	for field, v := range raw {
		switch val := v.(type) {
		case string:
			out[field] = append(out[field], val)
		case []any:
			for _, item := range val {
				out[field] = append(out[field], fmt.Sprint(item))
			}
		default:
			out[field] = append(out[field], fmt.Sprint(val))
		}
	}
	return out
}
