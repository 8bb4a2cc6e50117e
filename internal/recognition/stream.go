package recognition

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

const maxStreamLine = 4 << 20

// Chunk is one object of a newline-delimited generate stream.
type Chunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// StreamParser reads newline-delimited JSON objects, skipping lines that do
// not parse.
type StreamParser struct {
	scanner *bufio.Scanner
}

func NewStreamParser(r io.Reader) *StreamParser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return &StreamParser{scanner: scanner}
}

// Next returns the next well-formed chunk, or io.EOF once the stream ends.
func (p *StreamParser) Next() (*Chunk, error) {
	for p.scanner.Scan() {
		line := bytes.TrimSpace(p.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk Chunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		return &chunk, nil
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Collect concatenates every response fragment in arrival order. Fragments
// after a done marker are ignored. Any error messages carried by the stream
// are returned alongside the text.
func (p *StreamParser) Collect() (string, []string, error) {
	var text bytes.Buffer
	var streamErrs []string
	for {
		chunk, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return text.String(), streamErrs, err
		}

		text.WriteString(chunk.Response)
		if chunk.Error != "" {
			streamErrs = append(streamErrs, chunk.Error)
		}
		if chunk.Done {
			break
		}
	}
	return text.String(), streamErrs, nil
}
