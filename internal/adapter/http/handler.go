package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bnema/mediafetch/internal/adapter/http/templates"
	"github.com/bnema/mediafetch/internal/adapter/http/validation"
	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/infrastructure/logger"
	"github.com/bnema/mediafetch/internal/service"
	"github.com/dustin/go-humanize"
)

const (
	maxJSONBody       = 64 * 1024
	maxCookieUpload   = 8 * validation.MaxCookieFileSize
	cookieUploadField = "file"
)

type JobService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*domain.Job, error)
	Get(id, callerID string) (*domain.Job, error)
	History(callerID string, limit int) ([]*domain.Job, error)
	ArtifactPath(id, callerID string, kind service.ArtifactKind) (path, name string, err error)
	Info(ctx context.Context, rawURL string) (domain.MediaInfo, error)
}

type CredentialService interface {
	List() ([]domain.Credential, error)
	Add(data []byte) (domain.Credential, error)
	Remove(id string) error
	RemoveAll() (int, error)
	Check(ctx context.Context, id string) (bool, error)
	CheckAll(ctx context.Context) (int, error)
}

// SubmitLimiter throttles job submissions per client.
type SubmitLimiter interface {
	Allow(clientID string) (bool, time.Duration)
}

type Handlers struct {
	jobs           JobService
	credentials    CredentialService
	limiter        SubmitLimiter
	version        string
	targetLanguage string
	now            func() time.Time
}

func NewHandlers(jobs JobService, credentials CredentialService, limiter SubmitLimiter, version, targetLanguage string) *Handlers {
	return &Handlers{
		jobs:           jobs,
		credentials:    credentials,
		limiter:        limiter,
		version:        version,
		targetLanguage: targetLanguage,
		now:            time.Now,
	}
}

func (h *Handlers) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.Index(h.version, h.targetLanguage).Render(r.Context(), w)
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
	}
}

type infoRequest struct {
	URL string `json:"url"`
}

type infoResponse struct {
	Title           string  `json:"title"`
	Thumbnail       string  `json:"thumbnail"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Uploader        string  `json:"uploader"`
}

func (h *Handlers) Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req infoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		info, err := h.jobs.Info(r.Context(), req.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, infoResponse{
			Title:           info.Title,
			Thumbnail:       info.Thumbnail,
			Duration:        info.DurationString(),
			DurationSeconds: info.Duration,
			Uploader:        info.Uploader,
		})
	}
}

type downloadRequest struct {
	URL          string `json:"url"`
	Quality      string `json:"quality"`
	BurnSubtitle bool   `json:"burn_subtitle"`
}

type downloadResponse struct {
	JobID         string           `json:"job_id"`
	Status        domain.JobStatus `json:"status"`
	QueuePosition int              `json:"queue_position"`
}

func (h *Handlers) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientID(r.Context())
		if allowed, wait := h.limiter.Allow(clientID); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second).Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many downloads, try again in " + wait.Round(time.Second).String()})
			return
		}

		var req downloadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		job, err := h.jobs.Submit(r.Context(), service.SubmitRequest{
			URL:          req.URL,
			Quality:      domain.ParseQuality(req.Quality),
			BurnSubtitle: req.BurnSubtitle,
			OwnerID:      clientID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, downloadResponse{JobID: job.ID, Status: job.Status, QueuePosition: job.QueuePosition})
	}
}

func (h *Handlers) Job() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := h.jobs.Get(r.PathValue("id"), ClientID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (h *Handlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		jobs, err := h.jobs.History(ClientID(r.Context()), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*domain.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

// File serves a finished job's artifact as an attachment.
func (h *Handlers) File(kind service.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, name, err := h.jobs.ArtifactPath(r.PathValue("id"), ClientID(r.Context()), kind)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Disposition", validation.ContentDisposition(name))
		http.ServeFile(w, r, path)
	}
}

type poolEntry struct {
	ID          string  `json:"id"`
	SizeKB      float64 `json:"size_kb"`
	Valid       *bool   `json:"valid"`
	Checking    bool    `json:"checking"`
	UseCount    int     `json:"use_count"`
	LastUsedAgo string  `json:"last_used_ago"`
	LastChecked string  `json:"last_checked_ago,omitempty"`
}

type poolResponse struct {
	Cookies []poolEntry `json:"cookies"`
	Count   int         `json:"count"`
}

func (h *Handlers) CookiePool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := h.credentials.List()
		if err != nil {
			writeError(w, err)
			return
		}

		now := h.now()
		resp := poolResponse{Cookies: make([]poolEntry, 0, len(creds)), Count: len(creds)}
		for _, c := range creds {
			entry := poolEntry{
				ID:          c.ID,
				SizeKB:      math.Round(float64(c.Size)/102.4) / 10,
				Valid:       c.Valid,
				Checking:    c.Checking,
				UseCount:    c.UseCount,
				LastUsedAgo: "never",
			}
			if !c.LastUsedAt.IsZero() {
				entry.LastUsedAgo = humanize.RelTime(c.LastUsedAt, now, "ago", "from now")
			}
			if !c.LastValidatedAt.IsZero() {
				entry.LastChecked = humanize.RelTime(c.LastValidatedAt, now, "ago", "from now")
			}
			resp.Cookies = append(resp.Cookies, entry)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type okResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// UploadCookie accepts one or more Netscape cookie files in the "file"
// field. Nothing is stored unless every file is valid.
func (h *Handlers) UploadCookie() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCookieUpload)
		if err := r.ParseMultipartForm(maxCookieUpload); err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		headers := r.MultipartForm.File[cookieUploadField]
		if len(headers) == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file"})
			return
		}

		files := make([][]byte, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, err)
				return
			}
			data, err := io.ReadAll(io.LimitReader(f, validation.MaxCookieFileSize+1))
			_ = f.Close()
			if err != nil {
				writeError(w, err)
				return
			}
			if err := validation.ValidateCookieFile(data); err != nil {
				logger.Warn.Printf("Rejected cookie upload %s: %v", logger.SanitizeForLog(fh.Filename), err)
				writeError(w, err)
				return
			}
			files = append(files, data)
		}

		added := 0
		for _, data := range files {
			cred, err := h.credentials.Add(data)
			if err != nil {
				writeError(w, err)
				return
			}
			logger.Info.Printf("Added credential %s", cred.ID)
			added++
		}
		writeJSON(w, http.StatusOK, okResponse{OK: true, Count: added})
	}
}

func (h *Handlers) DeleteCookie() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.credentials.Remove(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{OK: true, Count: 1})
	}
}

func (h *Handlers) DeleteAllCookies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.credentials.RemoveAll()
		if err != nil {
			logger.Error.Printf("Remove all credentials: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{OK: true, Count: n})
	}
}

type checkResponse struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
}

func (h *Handlers) CheckCookie() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		valid, err := h.credentials.Check(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{ID: id, Valid: valid})
	}
}

func (h *Handlers) CheckAllCookies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The checks outlive this request.
		n, err := h.credentials.CheckAll(context.WithoutCancel(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"checking": n})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("invalid request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug.Printf("write response: %v", err)
	}
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, err error) {
	var execErr *domain.ExecError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrInvalidCredentialID),
		errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, validation.ErrNotCookieFile):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrNotReady):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrSchedulerStopped):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "server is shutting down"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "upstream timed out"})
	case errors.As(err, &execErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		logger.Error.Printf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
