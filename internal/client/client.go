// Package client talks to a mediafetch server over its HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
)

const (
	DefaultServer      = "http://localhost:7890"
	defaultHTTPTimeout = 30 * time.Second

	clientCookie = "mf_client"
	csrfCookie   = "mf_csrf"
	csrfHeader   = "X-CSRF-Token"
	sessionFile  = "session.json"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Options struct {
	// StateDir holds the persisted session. Empty disables persistence.
	StateDir   string
	HTTPClient *http.Client
}

// Client keeps the caller identity and CSRF token between runs so
// history and job lookups see the same owner.
type Client struct {
	base     *url.URL
	http     *http.Client
	stream   *http.Client
	jar      *cookiejar.Jar
	stateDir string
}

func New(server string, opts Options) (*Client, error) {
	if strings.TrimSpace(server) == "" {
		server = DefaultServer
	}
	base, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https: %s", server)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	withJar := *hc
	withJar.Jar = jar
	// Progress streams and file downloads outlive any fixed timeout.
	stream := withJar
	stream.Timeout = 0

	c := &Client{base: base, http: &withJar, stream: &stream, jar: jar, stateDir: opts.StateDir}
	c.loadSession()
	return c, nil
}

// DefaultStateDir is the per-user directory for the persisted session.
func DefaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mediafetch")
}

type session map[string]map[string]string

func (c *Client) sessionPath() string {
	if c.stateDir == "" {
		return ""
	}
	return filepath.Join(c.stateDir, sessionFile)
}

func (c *Client) readSessions() session {
	sessions := session{}
	path := c.sessionPath()
	if path == "" {
		return sessions
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sessions
	}
	_ = json.Unmarshal(data, &sessions)
	return sessions
}

func (c *Client) loadSession() {
	saved := c.readSessions()[c.base.String()]
	var cookies []*http.Cookie
	for _, name := range []string{clientCookie, csrfCookie} {
		if v := saved[name]; v != "" {
			cookies = append(cookies, &http.Cookie{Name: name, Value: v, Path: "/"})
		}
	}
	if len(cookies) > 0 {
		c.jar.SetCookies(c.base, cookies)
	}
}

func (c *Client) saveSession() {
	path := c.sessionPath()
	if path == "" {
		return
	}
	current := map[string]string{}
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == clientCookie || ck.Name == csrfCookie {
			current[ck.Name] = ck.Value
		}
	}
	if len(current) == 0 {
		return
	}
	sessions := c.readSessions()
	sessions[c.base.String()] = current
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.stateDir, 0o700); err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// refreshCSRF makes a safe request so the server hands out a token.
func (c *Client) refreshCSRF(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/healthz"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if c.cookie(csrfCookie) == "" {
		return errors.New("server did not issue a csrf token")
	}
	return nil
}

// do sends one request. Unsafe methods carry the CSRF header and are
// retried once with a fresh token when the server rejects the old one.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path, contentType string, body []byte) (*http.Response, error) {
	safe := method == http.MethodGet || method == http.MethodHead
	if !safe && c.cookie(csrfCookie) == "" {
		if err := c.refreshCSRF(ctx); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if !safe {
			req.Header.Set(csrfHeader, c.cookie(csrfCookie))
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		c.saveSession()
		// The middleware replaces a stale token on the rejected response.
		if resp.StatusCode == http.StatusForbidden && !safe && attempt == 0 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return resp, nil
	}
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, c.http, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
		contentType = "application/json"
	}
	resp, err := c.do(ctx, c.http, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/healthz", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

type Info struct {
	Title           string  `json:"title"`
	Thumbnail       string  `json:"thumbnail"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Uploader        string  `json:"uploader"`
}

func (c *Client) Info(ctx context.Context, rawURL string) (Info, error) {
	var out Info
	err := c.sendJSON(ctx, http.MethodPost, "/api/info", map[string]string{"url": rawURL}, &out)
	return out, err
}

type SubmitRequest struct {
	URL          string `json:"url"`
	Quality      string `json:"quality"`
	BurnSubtitle bool   `json:"burn_subtitle"`
}

type Submitted struct {
	JobID         string           `json:"job_id"`
	Status        domain.JobStatus `json:"status"`
	QueuePosition int              `json:"queue_position"`
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (Submitted, error) {
	var out Submitted
	err := c.sendJSON(ctx, http.MethodPost, "/api/download", req, &out)
	return out, err
}

func (c *Client) Job(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := c.getJSON(ctx, "/api/job/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) History(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	err := c.getJSON(ctx, "/api/history", &jobs)
	return jobs, err
}

// Follow streams job snapshots to fn until the job is terminal or ctx
// ends. It returns the last snapshot seen.
func (c *Client) Follow(ctx context.Context, id string, fn func(*domain.Job)) (*domain.Job, error) {
	resp, err := c.do(ctx, c.stream, http.MethodGet, "/api/progress/"+url.PathEscape(id), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var last *domain.Job
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return last, fmt.Errorf("decode progress event: %w", err)
		}
		last = &job
		if fn != nil {
			fn(last)
		}
		if job.Status.IsTerminal() {
			return last, nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return last, fmt.Errorf("read progress stream: %w", err)
	}
	if ctx.Err() != nil {
		return last, ctx.Err()
	}
	return last, errors.New("progress stream ended before the job finished")
}

// Artifact selects which file of a finished job to fetch.
type Artifact string

const (
	ArtifactBest     Artifact = ""
	ArtifactOriginal Artifact = "original"
	ArtifactBurned   Artifact = "burned"
)

type Download struct {
	Name string
	Size int64
	Body io.ReadCloser
}

// Download opens a job artifact. The caller closes Body.
func (c *Client) Download(ctx context.Context, id string, kind Artifact) (*Download, error) {
	path := "/api/file/" + url.PathEscape(id)
	if kind != ArtifactBest {
		path += "/" + string(kind)
	}
	resp, err := c.do(ctx, c.stream, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	name := id
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return &Download{Name: filepath.Base(name), Size: resp.ContentLength, Body: resp.Body}, nil
}

type Cookie struct {
	ID             string  `json:"id"`
	SizeKB         float64 `json:"size_kb"`
	Valid          *bool   `json:"valid"`
	Checking       bool    `json:"checking"`
	UseCount       int     `json:"use_count"`
	LastUsedAgo    string  `json:"last_used_ago"`
	LastCheckedAgo string  `json:"last_checked_ago"`
}

func (c *Client) Pool(ctx context.Context) ([]Cookie, error) {
	var out struct {
		Cookies []Cookie `json:"cookies"`
	}
	err := c.getJSON(ctx, "/api/cookies/pool", &out)
	return out.Cookies, err
}

type countResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// UploadCookies sends one or more cookie files in a single request.
// The server accepts all of them or none.
func (c *Client) UploadCookies(ctx context.Context, paths ...string) (int, error) {
	if len(paths) == 0 {
		return 0, errors.New("no cookie files given")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return 0, err
		}
		part, err := mw.CreateFormFile("file", filepath.Base(p))
		if err != nil {
			return 0, err
		}
		if _, err := part.Write(data); err != nil {
			return 0, err
		}
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, c.http, http.MethodPost, "/api/cookies/upload", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out countResponse
	err = decodeJSON(resp, &out)
	return out.Count, err
}

func (c *Client) Check(ctx context.Context, id string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	err := c.sendJSON(ctx, http.MethodPost, "/api/cookies/"+url.PathEscape(id)+"/check", nil, &out)
	return out.Valid, err
}

// CheckAll starts background checks and returns how many were started.
func (c *Client) CheckAll(ctx context.Context) (int, error) {
	var out struct {
		Checking int `json:"checking"`
	}
	err := c.sendJSON(ctx, http.MethodPost, "/api/cookies/check_all", nil, &out)
	return out.Checking, err
}

func (c *Client) DeleteCookie(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/api/cookies/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeleteAllCookies(ctx context.Context) (int, error) {
	var out countResponse
	err := c.sendJSON(ctx, http.MethodDelete, "/api/cookies", nil, &out)
	return out.Count, err
}
