package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/entrhq/browserd/pkg/logging"
)

// MaxLineSize bounds a single request line. Scripts travel inline. Longer
// lines are discarded without stopping the stream.
const MaxLineSize = 16 * 1024 * 1024

// oversizePrefix is how much of an oversized line is kept to recover its id.
const oversizePrefix = 4096

// Decoder reads requests from a line-delimited JSON stream.
type Decoder struct {
	r      *bufio.Reader
	logger *logging.Logger
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:      bufio.NewReaderSize(r, 64*1024),
		logger: logging.NewLogger("protocol"),
	}
}

// Next returns the next addressable request. Lines that cannot be answered are
// logged and skipped. An oversized line whose id is still readable comes back
// as a request with Invalid set, so the caller can answer it in order.
// Returns io.EOF when the stream ends.
func (d *Decoder) Next() (*Request, error) {
	for {
		raw, size, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read request stream: %w", err)
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		if size > MaxLineSize {
			id := gjson.GetBytes(line, "id")
			if !truthy(id) || !json.Valid([]byte(id.Raw)) {
				d.logger.Warnf("dropping request line of %d bytes: exceeds %d byte limit", size, MaxLineSize)
				continue
			}
			d.logger.Warnf("request %s: line of %d bytes exceeds %d byte limit", id.Raw, size, MaxLineSize)
			return &Request{
				ID:      json.RawMessage(id.Raw),
				Invalid: fmt.Errorf("request line of %d bytes exceeds the %d byte limit", size, MaxLineSize),
			}, nil
		}

		req, err := Decode(line)
		if err != nil {
			d.logger.Warnf("dropping request line: %v", err)
			continue
		}
		return req, nil
	}
}

// readLine reads one line of any length. Lines over MaxLineSize are cut to a
// short prefix; size always reports the full length.
func (d *Decoder) readLine() (line []byte, size int, err error) {
	for {
		chunk, err := d.r.ReadSlice('\n')
		size += len(chunk)
		switch {
		case size <= MaxLineSize:
			line = append(line, chunk...)
		case len(line) > oversizePrefix:
			line = append([]byte(nil), line[:oversizePrefix]...)
		case len(line) < oversizePrefix:
			line = append(line, chunk[:min(oversizePrefix-len(line), len(chunk))]...)
		}

		switch {
		case err == nil:
			return line, size, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && size > 0:
			return line, size, nil
		default:
			return nil, 0, err
		}
	}
}

// Decode parses a single request line. The method is read leniently so a
// non-string method still yields an answerable request.
func Decode(line []byte) (*Request, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return nil, fmt.Errorf("request must be a JSON object")
	}
	id := doc.Get("id")
	if !truthy(id) {
		return nil, fmt.Errorf("request has no usable id")
	}

	req := &Request{
		ID:     json.RawMessage(id.Raw),
		Method: doc.Get("method").String(),
	}
	if params := doc.Get("params"); params.Exists() {
		req.Params = json.RawMessage(params.Raw)
	}
	return req, nil
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	}
	return v.Exists()
}

// Encoder writes responses, one JSON value per line.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes resp followed by a newline in a single write.
func (e *Encoder) Encode(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
