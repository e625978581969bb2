// Package stream decodes server-sent-event response bodies into text increments.
//
// Vendors frame their streaming output as `data: {...}` lines, but a single network
// read may carry several frames or end in the middle of one. Decoder keeps the
// partial line between reads and hands each complete payload to a vendor-specific
// FrameParser.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DoneSentinel is the payload that marks the end of an OpenAI-style stream
const DoneSentinel = "[DONE]"

const readChunkSize = 4096

var (
	// ErrMalformedFrame is returned when a frame payload cannot be parsed
	ErrMalformedFrame = errors.New("malformed stream frame")

	// ErrTruncated is returned when the body ends before the stream signalled completion
	ErrTruncated = errors.New("stream ended before completion")
)

// FrameParser extracts the text delta from one frame payload.
// It returns an empty string for frames that carry no text (role announcements, usage).
type FrameParser func(payload []byte) (string, error)

// PayloadError is an error object the vendor embedded in the stream
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string {
	return e.Message
}

// ReadError is a failure of the underlying transport while reading the body
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read stream: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Option configures a Decoder
type Option func(*Decoder)

// RequireSentinel makes a body that ends before the [DONE] sentinel fail with ErrTruncated
func RequireSentinel() Option {
	return func(d *Decoder) {
		d.requireEnd = true
	}
}

// RequireFinalFrame makes a body fail with ErrTruncated unless some frame
// satisfied isFinal before it ended. For vendors without a sentinel.
func RequireFinalFrame(isFinal func(payload []byte) bool) Option {
	return func(d *Decoder) {
		d.requireEnd = true
		d.isFinal = isFinal
	}
}

// Decoder turns an SSE body into a sequence of text increments.
// It is not safe for concurrent use.
type Decoder struct {
	r     io.Reader
	parse FrameParser

	// residual holds bytes of a line that has not been terminated yet
	residual []byte
	readBuf  []byte

	// pending holds decoded increments not yet returned by Next
	pending []string

	requireEnd bool
	isFinal    func(payload []byte) bool

	done     bool // sentinel seen
	complete bool // final frame seen
	eof      bool // reader exhausted
	err      error
}

// NewDecoder creates a Decoder reading from r
func NewDecoder(r io.Reader, parse FrameParser, opts ...Option) *Decoder {
	d := &Decoder{
		r:       r,
		parse:   parse,
		readBuf: make([]byte, readChunkSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next non-empty text increment.
// It returns io.EOF once the stream ended cleanly, and a terminal error
// (*PayloadError, *ReadError, ErrMalformedFrame or ErrTruncated) otherwise. Increments decoded
// before a failing frame are returned before the error.
func (d *Decoder) Next() (string, error) {
	for {
		if len(d.pending) > 0 {
			text := d.pending[0]
			d.pending = d.pending[1:]
			return text, nil
		}

		if d.err != nil {
			return "", d.err
		}

		if d.done || d.eof {
			return "", io.EOF
		}

		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			d.residual = append(d.residual, d.readBuf[:n]...)
			d.drain(false)
		}

		switch {
		case err == io.EOF:
			d.eof = true
			d.drain(true)
			if d.requireEnd && !d.done && !d.complete && d.err == nil {
				d.err = ErrTruncated
			}
		case err != nil && d.err == nil:
			d.err = &ReadError{Err: err}
		}
	}
}

// drain processes every complete line in the residual buffer.
// With final set, an unterminated trailing line is processed as well.
func (d *Decoder) drain(final bool) {
	offset := 0
	for !d.done && d.err == nil {
		idx := bytes.IndexByte(d.residual[offset:], '\n')
		if idx < 0 {
			if final && offset < len(d.residual) {
				d.processLine(d.residual[offset:])
				offset = len(d.residual)
			}
			break
		}

		d.processLine(d.residual[offset : offset+idx])
		offset += idx + 1
	}

	if d.done || d.err != nil {
		d.residual = nil
		return
	}
	d.residual = append(d.residual[:0], d.residual[offset:]...)
}

func (d *Decoder) processLine(line []byte) {
	line = bytes.TrimRight(line, "\r")

	// Blank lines separate events; lines starting with ':' are comments
	if len(line) == 0 || line[0] == ':' {
		return
	}

	payload, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		// event:, id: and retry: fields carry nothing we need
		return
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return
	}

	if string(payload) == DoneSentinel {
		d.done = true
		return
	}

	if msg, ok := embeddedError(payload); ok {
		d.err = &PayloadError{Message: msg}
		return
	}

	text, err := d.parse(payload)
	if err != nil {
		d.err = fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		return
	}

	if text != "" {
		d.pending = append(d.pending, text)
	}

	if d.isFinal != nil && d.isFinal(payload) {
		d.complete = true
	}
}

// embeddedError detects the {"error": ...} object both OpenAI and Gemini use
// to report failures after the response headers were already sent.
func embeddedError(payload []byte) (string, bool) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", false
	}
	if len(envelope.Error) == 0 || string(envelope.Error) == "null" {
		return "", false
	}

	var detail struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message, true
	}

	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil && text != "" {
		return text, true
	}

	return string(envelope.Error), true
}
