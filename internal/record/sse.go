// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SSE framing for the stream protocol. Each record becomes one SSE event:
//
//	event: <kind>
//	id: <seq>        (data records only, feeds Last-Event-ID resume)
//	data: <json>
//	<blank line>
//
// Comment lines (leading ':') are permitted on the wire and skipped by the
// reader.

// ErrStreamClosed is returned by SSEReader.Next when the underlying stream
// ended cleanly between events.
var ErrStreamClosed = errors.New("sse stream closed")

// WriteSSE frames one record as an SSE event. Flushing is the caller's
// responsibility; the HTTP handler flushes after every event.
func WriteSSE(w io.Writer, r *Record) error {
	body, err := Marshal(r)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.Grow(len(body) + 64)
	b.WriteString("event: ")
	b.WriteString(string(r.Kind))
	b.WriteByte('\n')
	if r.Kind == KindData {
		b.WriteString("id: ")
		b.WriteString(strconv.FormatUint(r.Seq, 10))
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(body)
	b.WriteString("\n\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	return nil
}

// SSEReader incrementally parses SSE events from a byte stream back into
// records. It tolerates comment lines and multi-line data fields, and
// cross-checks the frame-level event/id fields against the JSON body.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader wraps r. The internal buffer accommodates payloads up to
// maxEventSize bytes per line.
func NewSSEReader(r io.Reader) *SSEReader {
	const maxEventSize = 1 << 20

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxEventSize)
	return &SSEReader{scanner: s}
}

// Next blocks until one complete SSE event is available and returns its
// record. It returns ErrStreamClosed when the stream ends between events and
// io.ErrUnexpectedEOF when it ends mid-event.
func (sr *SSEReader) Next() (*Record, error) {
	var (
		kind    string
		id      string
		data    []string
		started bool
	)

	for sr.scanner.Scan() {
		line := sr.scanner.Text()

		// Blank line terminates the event. Leading blanks before any
		// field are keepalive padding and skipped.
		if line == "" {
			if !started {
				continue
			}
			return sr.assemble(kind, id, data)
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitSSEField(line)
		switch field {
		case "event":
			kind = value
			started = true
		case "id":
			id = value
			started = true
		case "data":
			data = append(data, value)
			started = true
		default:
			// Unknown fields are ignored per the SSE processing model.
		}
	}

	if err := sr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sse stream: %w", err)
	}
	if started {
		return nil, io.ErrUnexpectedEOF
	}
	return nil, ErrStreamClosed
}

func (sr *SSEReader) assemble(kind, id string, data []string) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("sse event %q: missing data field", kind)
	}

	r, err := Unmarshal([]byte(strings.Join(data, "\n")))
	if err != nil {
		return nil, err
	}

	if kind != "" && kind != string(r.Kind) {
		return nil, fmt.Errorf("sse event field %q does not match record kind %q", kind, r.Kind)
	}
	if id != "" {
		seq, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse sse id %q: %w", id, err)
		}
		if r.Kind == KindData && seq != r.Seq {
			return nil, fmt.Errorf("sse id %d does not match record seq %d", seq, r.Seq)
		}
	}

	return r, nil
}

// splitSSEField splits "field: value" lines, trimming the single optional
// space after the colon per the SSE grammar.
func splitSSEField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
