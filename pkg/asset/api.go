package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kookworks/kgate/internal/errors"
	"github.com/kookworks/kgate/pkg/message"
)

// DefaultBaseURL is the platform API root.
const DefaultBaseURL = "https://www.kookapp.cn/api"

const createAssetPath = "/v3/asset/create"

// APIUploader uploads media through the platform's asset endpoint and
// returns the CDN URL the platform assigns.
type APIUploader struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// APIOption configures an APIUploader.
type APIOption func(*APIUploader)

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(url string) APIOption {
	return func(u *APIUploader) { u.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) APIOption {
	return func(u *APIUploader) { u.client = c }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) APIOption {
	return func(u *APIUploader) { u.logger = l }
}

// NewAPIUploader creates an uploader authenticated with the bot token.
func NewAPIUploader(token string, opts ...APIOption) *APIUploader {
	u := &APIUploader{
		baseURL: DefaultBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type createAssetResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload sends the file as a multipart form and returns the hosted URL.
func (u *APIUploader) Upload(ctx context.Context, r io.Reader, name string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", errors.Newf(errors.CategoryUpload, "build form: %v", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", errors.Newf(errors.CategoryUpload, "read media: %v", err)
	}
	if err := mw.Close(); err != nil {
		return "", errors.Newf(errors.CategoryUpload, "build form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+createAssetPath, &body)
	if err != nil {
		return "", errors.Newf(errors.CategoryUpload, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Bot "+u.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", errors.Newf(errors.CategoryUpload, "post asset: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.CategoryUpload, "asset create returned %s", resp.Status)
	}

	var parsed createAssetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Newf(errors.CategoryUpload, "decode asset response: %v", err)
	}
	if parsed.Code != 0 {
		return "", errors.Newf(errors.CategoryUpload, "asset create failed with code %d: %s", parsed.Code, parsed.Message)
	}
	if parsed.Data.URL == "" {
		return "", errors.Newf(errors.CategoryUpload, "asset create returned no url")
	}

	u.logger.Debug("uploaded asset", "name", name, "url", parsed.Data.URL)
	return parsed.Data.URL, nil
}

var _ message.Uploader = (*APIUploader)(nil)
