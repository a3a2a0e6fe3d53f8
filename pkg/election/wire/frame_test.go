package wire

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/rafaelcarvalho/fireelect/pkg/election/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		kind    types.Kind
		payload int
	}{
		{types.ParentRequest, 3},
		{types.ParentAck, 0},
		{types.ParentReject, 12},
		{types.LeaderAnnouncement, 7},
		{types.Error, 1},
	}

	for _, c := range cases {
		frame := Encode(c.kind, c.payload)
		if !strings.HasSuffix(string(frame), "\n") {
			t.Fatalf("encoded frame %q missing newline terminator", frame)
		}

		r := NewReader(strings.NewReader(string(frame)))
		kind, payload, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if kind != c.kind || payload != c.payload {
			t.Errorf("got (%s, %d), want (%s, %d)", kind, payload, c.kind, c.payload)
		}
	}
}

func TestReadFrameMultipleOnOneStream(t *testing.T) {
	var buf strings.Builder
	buf.Write(Encode(types.ParentRequest, 1))
	buf.Write(Encode(types.ParentAck, 2))

	r := NewReader(strings.NewReader(buf.String()))

	kind, payload, err := r.ReadFrame()
	if err != nil || kind != types.ParentRequest || payload != 1 {
		t.Fatalf("first frame: got (%s, %d, %v)", kind, payload, err)
	}

	kind, payload, err = r.ReadFrame()
	if err != nil || kind != types.ParentAck || payload != 2 {
		t.Fatalf("second frame: got (%s, %d, %v)", kind, payload, err)
	}
}

func TestReadFrameClosedOnEOF(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, _, err := r.ReadFrame(); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestReadFrameMalformedFieldCount(t *testing.T) {
	r := NewReader(strings.NewReader("be_my_parent\n"))
	assertProtocolError(t, r)
}

func TestReadFrameUnknownKind(t *testing.T) {
	r := NewReader(strings.NewReader("not_a_kind 3\n"))
	assertProtocolError(t, r)
}

func TestReadFrameNonDecimalPayload(t *testing.T) {
	r := NewReader(strings.NewReader("be_my_parent abc\n"))
	assertProtocolError(t, r)
}

func TestReadFrameNegativePayloadRejected(t *testing.T) {
	r := NewReader(strings.NewReader("be_my_parent -1\n"))
	assertProtocolError(t, r)
}

func assertProtocolError(t *testing.T, r *Reader) {
	t.Helper()
	_, _, err := r.ReadFrame()
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}
