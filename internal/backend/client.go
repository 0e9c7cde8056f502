// Package backend talks to the external speech-to-text service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

const (
	defaultURL     = "http://localhost:5000/api"
	defaultTimeout = 5 * time.Minute

	unavailableMessage = "Transcription service unavailable"
	failedMessage      = "Transcription failed"
)

// Config holds the connection settings for the backend
type Config struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// ProgressFunc receives the number of request body bytes sent so far
type ProgressFunc func(sent, total int64)

// Request describes one transcription submission
type Request struct {
	File     types.SourceFile
	Options  types.Options
	Progress ProgressFunc
}

// Model is one entry of the backend's model list
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModelList is the response of the models endpoint
type ModelList struct {
	Models  []Model `json:"models"`
	Default string  `json:"default"`
}

// DefaultModels is used when the backend does not publish a model list
func DefaultModels() ModelList {
	return ModelList{
		Models: []Model{
			{ID: "tiny", Name: "Tiny", Description: "Fastest, lower accuracy (~39 MB)"},
			{ID: "base", Name: "Base", Description: "Recommended balance (~74 MB)"},
			{ID: "small", Name: "Small", Description: "Better accuracy (~244 MB)"},
			{ID: "medium", Name: "Medium", Description: "High accuracy (~769 MB)"},
			{ID: "large", Name: "Large", Description: "Best accuracy (~1550 MB)"},
		},
		Default: "base",
	}
}

// Client calls the transcription backend. The client itself has no
// timeout; callers bound each request with a context deadline.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		http:    &http.Client{},
	}
}

// Timeout returns the deadline applied to a transcription attempt
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// URL returns the backend base URL
func (c *Client) URL() string {
	return c.baseURL
}

type transcribeResponse struct {
	Success bool              `json:"success"`
	Result  *types.Transcript `json:"result"`
	Error   string            `json:"error"`
}

// Transcribe uploads the file with its options and waits for the result.
// Failures are returned as apperr errors: Timeout when ctx expires, Network
// when the request cannot complete, Backend for everything the service
// reports.
func (c *Client) Transcribe(ctx context.Context, req Request) (*types.Transcript, error) {
	body, contentType, err := buildMultipart(req)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("build request body: %w", err))
	}

	total := int64(len(body))
	var reader io.Reader = bytes.NewReader(body)
	if req.Progress != nil {
		reader = &countingReader{r: reader, total: total, fn: req.Progress}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", reader)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.ContentLength = total
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	log.Debug().
		Str("file", req.File.Name).
		Str("model", req.Options.Model).
		Bool("speaker_separation", req.Options.SpeakerSeparation).
		Int64("bytes", total).
		Msg("submitting transcription")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Backend(statusMessage(resp, data), fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apperr.Backend(failedMessage, fmt.Errorf("decode response: %w", err))
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = failedMessage
		}
		return nil, apperr.Backend(msg, nil)
	}
	if parsed.Result == nil {
		return nil, apperr.Backend(failedMessage, errors.New("response has no result"))
	}
	if err := parsed.Result.Validate(); err != nil {
		return nil, apperr.Backend(failedMessage, fmt.Errorf("malformed result: %w", err))
	}

	log.Debug().
		Float64("duration", parsed.Result.Duration).
		Int("segments", len(parsed.Result.Segments)).
		Msg("transcription received")

	return parsed.Result, nil
}

// Health reports whether the backend answers its health endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return apperr.Internal(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperr.Backend("API not responding", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// Models fetches the list of models offered by the backend
func (c *Client) Models(ctx context.Context) (*ModelList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, apperr.Backend(statusMessage(resp, data), fmt.Errorf("status %d", resp.StatusCode))
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, apperr.Backend("Invalid model list", fmt.Errorf("decode models: %w", err))
	}
	return &list, nil
}

// buildMultipart encodes the audio file and form fields
func buildMultipart(req Request) ([]byte, string, error) {
	f, err := os.Open(req.File.Path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, escapeQuotes(req.File.Name)))
	ct := req.File.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", req.Options.Model},
		{"speaker_separation", strconv.FormatBool(req.Options.SpeakerSeparation)},
		{"speaker_count", strconv.Itoa(req.Options.SpeakerCount)},
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// statusMessage picks the error text of a non-2xx response: the body's
// error field, then the status text, then a generic message.
func statusMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		return unavailableMessage
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return unavailableMessage
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}
	return apperr.Network(err)
}

// countingReader reports progress as the HTTP client drains the body
type countingReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		cr.fn(cr.sent, cr.total)
	}
	return n, err
}
