// Package recognition asks an Ollama vision model which participant numbers
// are visible in an image.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dorsal/internal/faults"
)

const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "llama3.2-vision"
	DefaultTemperature = 0.1

	maxErrorBody = 64 << 10
)

// Prompt is sent with every image.
const Prompt = `Analyze this image and find every clearly visible participant number in the foreground.
Do not consider numbers in the background or numbers that are out of focus.
Reply only with the numbers found, separated by commas.`

// SuggestedModels are vision models known to work with Prompt.
var SuggestedModels = []string{"llama3.2-vision", "llava:7b", "llava:13b", "llava:34b"}

type Options struct {
	BaseURL     string
	Temperature float64
	// Timeout bounds a whole request including the streamed body. Zero
	// disables it.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL     string
	temperature float64
	httpClient  *http.Client
	logger      zerolog.Logger
}

// Result is the outcome of one successful recognition.
type Result struct {
	RawText string
	Numbers []int
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:     baseURL,
		temperature: opts.Temperature,
		httpClient:  httpClient,
		logger:      opts.Logger.With().Str("component", "recognition").Logger(),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Recognize sends the image at imagePath to model and extracts the numbers
// from the streamed answer. Every failure comes back as a *faults.Error.
func (c *Client) Recognize(ctx context.Context, imagePath, model string) (Result, error) {
	info, err := os.Stat(imagePath)
	if err != nil || !info.Mode().IsRegular() {
		return Result{}, faults.New(faults.NotFound, imagePath, fmt.Sprintf("file %s does not exist", imagePath), err)
	}

	encoded, err := EncodeImage(imagePath)
	if err != nil {
		return Result{}, faults.New(faults.Decode, imagePath, "decode image", err)
	}

	if model == "" {
		model = DefaultModel
	}
	body, err := json.Marshal(generateRequest{
		Model:   model,
		Prompt:  Prompt,
		Images:  []string{encoded},
		Stream:  true,
		Options: generateOptions{Temperature: c.temperature},
	})
	if err != nil {
		return Result{}, faults.New(faults.Unexpected, imagePath, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, faults.New(faults.Unexpected, imagePath, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	c.logger.Debug().Str("file", imagePath).Str("model", model).Int("payload_bytes", len(body)).Msg("sending image")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, faults.New(faults.Network, imagePath, "inference request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, &faults.Error{
			Kind:   faults.Remote,
			Path:   imagePath,
			Status: resp.StatusCode,
			Msg:    fmt.Sprintf("%d %s", resp.StatusCode, string(b)),
		}
	}

	text, streamErrs, err := NewStreamParser(resp.Body).Collect()
	if err != nil {
		return Result{}, faults.New(faults.Network, imagePath, "read response stream", err)
	}
	for _, msg := range streamErrs {
		c.logger.Warn().Str("file", imagePath).Str("stream_error", msg).Msg("inference stream reported an error")
	}

	numbers := ExtractNumbers(text)
	c.logger.Debug().
		Str("file", imagePath).
		Ints("numbers", numbers).
		Dur("elapsed", time.Since(started)).
		Msg("recognition finished")

	return Result{RawText: text, Numbers: numbers}, nil
}

// ModelInfo describes a model installed on the inference server.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Models lists the models installed on the server. It doubles as a
// connectivity check.
func (c *Client) Models(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, faults.New(faults.Unexpected, "", "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.New(faults.Network, "", fmt.Sprintf("cannot reach inference server at %s", c.baseURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &faults.Error{
			Kind:   faults.Remote,
			Status: resp.StatusCode,
			Msg:    fmt.Sprintf("%d %s", resp.StatusCode, string(b)),
		}
	}

	var payload struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, faults.New(faults.Unexpected, "", "decode model list", err)
	}
	return payload.Models, nil
}
