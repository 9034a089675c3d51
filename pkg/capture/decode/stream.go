package decode

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/trainloop/capture/pkg/capture"
)

// maxInflatedBytes bounds gzip decompression of a captured body.
const maxInflatedBytes = 32 * DefaultMaxBodyBytes

var gzipMagic = []byte{0x1f, 0x8b}

// sseDone is the sentinel OpenAI sends as the final SSE event.
const sseDone = "[DONE]"

// Reconstruct turns accumulated response bytes into the body the response
// parser understands. Gzip bodies are inflated first; Server-Sent-Event
// streams are collapsed into {"content": "<merged deltas>"}; anything else is
// returned unchanged.
//
// The returned bytes are always usable. A non-nil error describes a decode
// step that failed and was skipped; it is informational only.
func Reconstruct(raw []byte) (out []byte, err error) {
	out = raw
	defer func() {
		if r := recover(); r != nil {
			out = raw
			err = &capture.DecodeError{Stage: "reconstruct", Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	body := raw
	if IsGzip(body) {
		inflated, gzErr := inflate(body)
		if len(inflated) > 0 {
			body = inflated
		}
		if gzErr != nil {
			err = &capture.DecodeError{Stage: "gzip", Cause: gzErr}
			if len(inflated) == 0 {
				return raw, err
			}
		}
	}

	if !IsSSE(body) {
		return body, err
	}

	merged, ok, sseErr := mergeSSE(body)
	if sseErr != nil && err == nil {
		err = &capture.DecodeError{Stage: "sse", Cause: sseErr}
	}
	if !ok {
		return body, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if encErr := enc.Encode(map[string]string{"content": merged}); encErr != nil {
		return body, &capture.DecodeError{Stage: "sse", Cause: encErr}
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), err
}

// IsGzip reports whether b starts with the gzip magic number.
func IsGzip(b []byte) bool {
	return bytes.HasPrefix(b, gzipMagic)
}

// IsSSE reports whether b contains at least one "data:" field line.
func IsSSE(b []byte) bool {
	for _, line := range bytes.Split(b, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("data:")) {
			return true
		}
	}
	return false
}

// inflate decompresses as much of a gzip body as it can. A capped body
// usually ends mid-stream, so a partial result is returned alongside the
// error.
func inflate(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out bytes.Buffer
	_, err = io.Copy(&out, io.LimitReader(zr, maxInflatedBytes))
	return out.Bytes(), err
}

// sseChunk covers the delta-bearing fields of the OpenAI and Anthropic
// streaming formats.
type sseChunk struct {
	Type    string `json:"type"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// mergeSSE walks SSE events in arrival order and concatenates their content
// deltas. ok is false when no event carried a recognizable delta.
func mergeSSE(body []byte) (merged string, ok bool, err error) {
	var (
		sb      strings.Builder
		data    []string
		badJSON int
		done    bool
	)

	dispatch := func() {
		if len(data) == 0 {
			return
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		if payload == sseDone {
			done = true
			return
		}
		var chunk sseChunk
		if jsonErr := json.Unmarshal([]byte(payload), &chunk); jsonErr != nil {
			badJSON++
			return
		}
		for _, choice := range chunk.Choices {
			if choice.Index == 0 && choice.Delta.Content != nil {
				sb.WriteString(*choice.Delta.Content)
				ok = true
			}
		}
		if chunk.Type == "content_block_delta" && chunk.Delta.Text != "" {
			sb.WriteString(chunk.Delta.Text)
			ok = true
		}
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			dispatch()
			if done {
				break
			}
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			// event:, id:, retry: and comment lines carry no content
			continue
		}
		data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	}
	if !done {
		dispatch()
	}

	if badJSON > 0 && !ok {
		err = fmt.Errorf("%d malformed SSE events", badJSON)
	}
	return sb.String(), ok, err
}
