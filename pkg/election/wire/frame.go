// Package wire implements the election protocol's on-the-wire framing:
// "kind SP integer LF", newline-delimited rather than relying on "one recv
// equals one message", which is fragile under TCP's stream semantics
// (reads can coalesce or split frames). A delimiter plus a
// read-until-delimiter loop avoids that fragility.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
)

var (
	// ErrClosed is returned by Reader.ReadFrame when the underlying
	// stream reached EOF.
	ErrClosed = errors.New("wire: connection closed")

	// ErrProtocol is returned for any frame that cannot be parsed as
	// "kind SP integer".
	ErrProtocol = errors.New("wire: malformed frame")
)

// Encode renders a single frame: "kind payload\n".
func Encode(kind types.Kind, payload int) []byte {
	return []byte(fmt.Sprintf("%s %d\n", kind, payload))
}

// Reader reads one frame at a time off a stream, buffering at the line
// boundary.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for frame-at-a-time reads.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), 1024)
	return &Reader{scanner: scanner}
}

// ReadFrame blocks until a full frame arrives, the stream closes, or a read
// error occurs. There is deliberately no per-read timeout: the election
// protocol blocks indefinitely on peer progress.
func (r *Reader) ReadFrame() (types.Kind, int, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", 0, errors.Wrap(err, "wire: read frame")
		}
		return "", 0, ErrClosed
	}
	return parseLine(r.scanner.Text())
}

func parseLine(line string) (types.Kind, int, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", 0, errors.Wrapf(ErrProtocol, "expected 2 fields, got %q", line)
	}
	kind := types.Kind(fields[0])
	if !kind.Valid() {
		return "", 0, errors.Wrapf(ErrProtocol, "unknown kind %q", fields[0])
	}
	payload, err := strconv.Atoi(fields[1])
	if err != nil || payload < 0 {
		return "", 0, errors.Wrapf(ErrProtocol, "non-decimal payload %q", fields[1])
	}
	return kind, payload, nil
}
