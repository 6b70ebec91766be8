package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zen-systems/pulseboard/pkg/logger"
)

// maxFrameSize bounds a single stream line. Gemini frames carrying safety
// metadata routinely exceed bufio's 64KB default.
const maxFrameSize = 1 << 20

// errorBodyLimit bounds how much of a failed response is read for its message.
const errorBodyLimit = 1 << 20

var (
	ssePrefix = []byte("data:")
	sseDone   = []byte("[DONE]")
)

// frameFormat is the line framing used by a streaming backend.
type frameFormat int

const (
	// framesNDJSON is one JSON object per line (Ollama).
	framesNDJSON frameFormat = iota
	// framesSSE is server-sent events with JSON payloads on data: lines.
	framesSSE
)

// streamRequest is one streaming POST and the rule for pulling text out of
// each decoded frame.
type streamRequest struct {
	provider Provider
	url      string
	headers  map[string]string
	body     []byte
	format   frameFormat

	// extract returns the text carried by a frame, if any.
	extract func(frame []byte) string
}

// withStreamFlag sets "stream": true on an already encoded request body.
func withStreamFlag(body []byte) ([]byte, error) {
	out, err := sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("failed to set stream flag: %w", err)
	}
	return out, nil
}

// seq sends the request when iteration starts and yields one fragment per
// frame that carries text. Lines that are blank, undecodable, or end markers
// are skipped. The body is closed when iteration ends for any reason.
func (r streamRequest) seq(ctx context.Context, client *http.Client) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := postJSON(ctx, client, r.provider, r.url, r.headers, r.body)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
		for scanner.Scan() {
			frame, ok := r.frame(scanner.Bytes())
			if !ok {
				continue
			}
			if !gjson.ValidBytes(frame) {
				logger.Log.WithFields(logrus.Fields{
					"provider": r.provider,
					"bytes":    len(frame),
				}).Debug("skipping malformed stream frame")
				continue
			}
			text := r.extract(frame)
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield("", ctxErr)
				return
			}
			yield("", fmt.Errorf("%s stream interrupted: %w", r.provider.DisplayName(), err))
		}
	}
}

// frame strips the transport framing from a raw line.
func (r streamRequest) frame(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if r.format == framesSSE {
		payload, ok := bytes.CutPrefix(line, ssePrefix)
		if !ok {
			return nil, false
		}
		line = bytes.TrimSpace(payload)
		if bytes.Equal(line, sseDone) {
			return nil, false
		}
	}
	return line, len(line) > 0
}

// postJSON sends body and returns the response only for a 2xx status.
// The caller owns the returned body.
func postJSON(ctx context.Context, client *http.Client, p Provider, url string, headers map[string]string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(p, redactQuery(url), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, statusError(p, resp.StatusCode, data)
	}
	return resp, nil
}

// redactQuery drops the query string so API keys passed as parameters never
// end up in error values or logs.
func redactQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
