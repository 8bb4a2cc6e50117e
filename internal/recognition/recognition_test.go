package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dorsal/internal/faults"
)

func TestExtractNumbers(t *testing.T) {
	cases := []struct {
		text string
		want []int
	}{
		{"12, 12, 07", []int{7, 12}},
		{"", nil},
		{"no numbers here", nil},
		{"Números: 345,  18 y 2024.", []int{18, 345, 2024}},
		{"１２３, 45", []int{45, 123}},
		{"99999999999999999999999, 5", []int{5}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractNumbers(tc.text), "text %q", tc.text)
	}
}

func TestExtractNumbersOrderIndependent(t *testing.T) {
	a := ExtractNumbers("5, 17, 5, 230")
	b := ExtractNumbers("230 17 17 5")
	assert.Equal(t, a, b)
	assert.Equal(t, a, ExtractNumbers(fmt.Sprint(a)))
}

func TestStreamParserSkipsInvalidLines(t *testing.T) {
	stream := strings.Join([]string{
		`{"response":"12"}`,
		`not json`,
		``,
		`{"response":", 3"}`,
		`{"model":"x"}`,
		`{"response":"4","done":true}`,
		`{"response":"ignored"}`,
	}, "\n")

	text, errs, err := NewStreamParser(strings.NewReader(stream)).Collect()
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, "12, 34", text)
}

type generateCapture struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Images  []string `json:"images"`
	Stream  bool     `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

func newFakeOllama(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/generate", handler)
	r.Get("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"models":[{"name":"llama3.2-vision:latest","size":7900000000}]}`)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeTestImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xc0})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestRecognizeStreamsAndExtracts(t *testing.T) {
	var captured generateCapture
	srv := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, "{\"response\":\"12\"}\n{\"response\":\", 12\"}\ngarbage\n{\"response\":\", 07\",\"done\":true}\n")
	})

	dir := t.TempDir()
	path := writeTestImage(t, dir, "A.png", 2048, 1024)

	client := NewClient(Options{BaseURL: srv.URL + "/", Temperature: DefaultTemperature, Logger: zerolog.Nop()})
	res, err := client.Recognize(context.Background(), path, "llava:7b")
	require.NoError(t, err)

	assert.Equal(t, "12, 12, 07", res.RawText)
	assert.Equal(t, []int{7, 12}, res.Numbers)

	assert.Equal(t, "llava:7b", captured.Model)
	assert.Equal(t, Prompt, captured.Prompt)
	assert.True(t, captured.Stream)
	assert.InDelta(t, 0.1, captured.Options.Temperature, 1e-9)
	require.Len(t, captured.Images, 1)

	raw, err := base64.StdEncoding.DecodeString(captured.Images[0])
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestRecognizeRemoteError(t *testing.T) {
	srv := newFakeOllama(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model not found"}`)
	})

	path := writeTestImage(t, t.TempDir(), "b.png", 8, 8)
	client := NewClient(Options{BaseURL: srv.URL, Logger: zerolog.Nop()})
	_, err := client.Recognize(context.Background(), path, "")
	require.Error(t, err)

	assert.True(t, faults.Is(err, faults.Remote))
	assert.Equal(t, `404 {"error":"model not found"}`, err.Error())
}

func TestRecognizeNetworkError(t *testing.T) {
	srv := newFakeOllama(t, func(http.ResponseWriter, *http.Request) {})
	url := srv.URL
	srv.Close()

	path := writeTestImage(t, t.TempDir(), "c.png", 8, 8)
	client := NewClient(Options{BaseURL: url, Logger: zerolog.Nop()})
	_, err := client.Recognize(context.Background(), path, "")
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.Network), "kind = %v", faults.KindOf(err))
}

func TestRecognizeMissingAndCorruptFiles(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	dir := t.TempDir()

	_, err := client.Recognize(context.Background(), filepath.Join(dir, "missing.jpg"), "")
	assert.True(t, faults.Is(err, faults.NotFound), "kind = %v", faults.KindOf(err))

	_, err = client.Recognize(context.Background(), dir, "")
	assert.True(t, faults.Is(err, faults.NotFound), "directories are not images")

	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not an image"), 0o644))
	_, err = client.Recognize(context.Background(), corrupt, "")
	assert.True(t, faults.Is(err, faults.Decode), "kind = %v", faults.KindOf(err))
}

func TestModels(t *testing.T) {
	srv := newFakeOllama(t, func(http.ResponseWriter, *http.Request) {})
	client := NewClient(Options{BaseURL: srv.URL, Logger: zerolog.Nop()})

	models, err := client.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3.2-vision:latest", models[0].Name)
}
