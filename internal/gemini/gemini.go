// Package gemini talks to a Gemini-style generative language REST API for
// multimodal highlight analysis. It owns the wire format only; retry and
// backoff policy belongs to the analyzer.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public generative language endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// RawHighlight is one entry of the structured model response. Timestamps
// are relative to the submitted media, not to the full source video.
type RawHighlight struct {
	StartSeconds float64 `json:"timestamp_start_seconds"`
	EndSeconds   float64 `json:"timestamp_end_seconds"`
	Description  string  `json:"description"`
}

// Client performs uploads and generateContent calls against one model.
type Client struct {
	logger      zerolog.Logger
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// New creates a client. An empty baseURL selects the public endpoint. The
// http.Client carries no timeout; callers bound each attempt with a
// context deadline.
func New(logger zerolog.Logger, baseURL, apiKey, model string, temperature float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		logger:      logger.With().Str("component", "gemini").Logger(),
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{},
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// AnalyzeMedia uploads the media file, waits for it to become usable,
// requests a structured highlight list against it, and deletes the remote
// file again. All returned errors are retryable from the analyzer's point
// of view.
func (c *Client) AnalyzeMedia(ctx context.Context, mediaPath, prompt string) ([]RawHighlight, error) {
	file, err := c.Upload(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Remote cleanup is best effort; a fresh context so a timed-out
		// attempt still releases the uploaded file.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if derr := c.DeleteFile(cleanupCtx, file.Name); derr != nil {
			c.logger.Debug().Err(derr).Str("file", file.Name).Msg("remote file cleanup failed")
		}
	}()

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return nil, err
	}

	return c.Generate(ctx, file.URI, prompt)
}

// FileRef identifies an uploaded remote file.
type FileRef struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

// Upload pushes the media file as a raw upload and returns its reference.
func (c *Client) Upload(ctx context.Context, mediaPath string) (FileRef, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return FileRef{}, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return FileRef{}, fmt.Errorf("stat media: %w", err)
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return FileRef{}, fmt.Errorf("upload request: %w", err)
	}
	req.ContentLength = stat.Size()
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("Content-Type", mimeTypeFor(mediaPath))
	req.Header.Set("X-Goog-File-Name", filepath.Base(mediaPath))

	c.logger.Debug().
		Str("media", filepath.Base(mediaPath)).
		Int64("bytes", stat.Size()).
		Msg("uploading media")

	var body struct {
		File FileRef `json:"file"`
	}
	if err := c.do(req, &body); err != nil {
		return FileRef{}, err
	}
	if body.File.Name == "" {
		return FileRef{}, &ParseError{Err: fmt.Errorf("upload response missing file name")}
	}
	return body.File, nil
}

// waitActive polls the file until it leaves the PROCESSING state.
func (c *Client) waitActive(ctx context.Context, file FileRef) (FileRef, error) {
	for file.State == "PROCESSING" {
		select {
		case <-ctx.Done():
			return FileRef{}, &TransportError{Err: ctx.Err()}
		case <-time.After(2 * time.Second):
		}

		url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, file.Name, c.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return FileRef{}, fmt.Errorf("file status request: %w", err)
		}
		var next FileRef
		if err := c.do(req, &next); err != nil {
			return FileRef{}, err
		}
		next.Name = file.Name
		file = next
	}

	if file.State == "FAILED" {
		return FileRef{}, &TransportError{Err: fmt.Errorf("remote media processing failed for %s", file.Name)}
	}
	return file, nil
}

// DeleteFile removes an uploaded file from the endpoint.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return c.do(req, nil)
}

// Generate asks the model for highlights in the referenced media. The
// response is constrained to a JSON schema so entries arrive structured;
// entries that still fail per-field validation are the analyzer's problem,
// a body that is not valid JSON at all is a ParseError here.
func (c *Client) Generate(ctx context.Context, fileURI, prompt string) ([]RawHighlight, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{FileData: &fileData{FileURI: fileURI, MIMEType: "video/mp4"}},
				{Text: prompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   json.RawMessage(highlightSchema),
			Temperature:      c.temperature,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp generateResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	if resp.UsageMetadata.TotalTokenCount > 0 {
		c.logger.Debug().
			Int("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int("response_tokens", resp.UsageMetadata.CandidatesTokenCount).
			Int("total_tokens", resp.UsageMetadata.TotalTokenCount).
			Msg("token usage")
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("empty response from model")}
	}

	var out struct {
		Highlights []RawHighlight `json:"highlights"`
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("model response is not valid JSON: %w", err)}
	}
	return out.Highlights, nil
}

// do executes the request, classifies HTTP failures, and decodes the body
// into out when non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}

// highlightSchema constrains the model to the structured highlight list.
const highlightSchema = `{
  "type": "object",
  "properties": {
    "highlights": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "timestamp_start_seconds": {"type": "number", "minimum": 0},
          "timestamp_end_seconds": {"type": "number", "minimum": 0},
          "description": {"type": "string", "minLength": 1}
        },
        "required": ["timestamp_start_seconds", "timestamp_end_seconds", "description"]
      }
    }
  },
  "required": ["highlights"]
}`

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MIMEType string `json:"mime_type"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"response_mime_type"`
	ResponseSchema   json.RawMessage `json:"response_schema,omitempty"`
	Temperature      float64         `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
