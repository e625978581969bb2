package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rfushimi/q/internal/stream"
)

// maxErrorBody limits how much of an error response is kept in the message
const maxErrorBody = 64 << 10

// sseSequence adapts a stream.Decoder over an HTTP body to ChunkSequence
type sseSequence struct {
	decoder *stream.Decoder
	body    io.ReadCloser
}

func newSSESequence(body io.ReadCloser, parse stream.FrameParser, opts ...stream.Option) *sseSequence {
	return &sseSequence{
		decoder: stream.NewDecoder(body, parse, opts...),
		body:    body,
	}
}

func (s *sseSequence) Next() (string, error) {
	text, err := s.decoder.Next()
	if err == nil || err == io.EOF {
		return text, err
	}

	var readErr *stream.ReadError
	if errors.As(err, &readErr) {
		return "", transportError(readErr.Err)
	}

	var payloadErr *stream.PayloadError
	if errors.As(err, &payloadErr) {
		return "", &Error{Kind: KindStream, Message: payloadErr.Message}
	}

	return "", &Error{Kind: KindStream, Message: err.Error(), Err: err}
}

func (s *sseSequence) Close() error {
	return s.body.Close()
}

// readErrorBody drains a failed response and maps it to an Error
func readErrorBody(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return FromStatus(resp.StatusCode, string(body))
}

// doRequest sends req and classifies transport failures and non-2xx statuses.
// On success the caller owns resp.Body.
func doRequest(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readErrorBody(resp)
	}

	return resp, nil
}

// joinURL appends path to base without doubling the separator
func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// requestContext bounds non-streaming calls by RequestTimeout
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, RequestTimeout)
}
