package definition

import "github.com/pkg/errors"

// Error taxonomy for the engine. Each sentinel is wrapped with call-site
// context via github.com/pkg/errors at the point of occurrence so fatal
// errors reaching the facade caller carry a stack and a cause chain.
var (
	// ErrConfig covers a malformed topology file or a reference to an
	// unknown node.
	ErrConfig = errors.New("config error")

	// ErrBind covers a listen-socket setup failure.
	ErrBind = errors.New("bind error")

	// ErrDial covers an outbound connect failure. Never retried by the
	// core; the caller must treat it as fatal.
	ErrDial = errors.New("dial error")

	// ErrIO covers a runtime socket failure other than a clean close.
	ErrIO = errors.New("io error")

	// ErrConnClosed names the EOF-on-read case of the taxonomy. The
	// engine does not return it: readers report EOF as wire.ErrClosed.
	ErrConnClosed = errors.New("connection closed")

	// ErrProtocol names the unparseable-frame case of the taxonomy. The
	// engine does not return it: readers report bad frames as
	// wire.ErrProtocol, which ends only the offending peer's reader.
	ErrProtocol = errors.New("protocol error")

	// ErrNoChannel is returned by the connection manager when asked to
	// send to a peer with neither an inbound nor an outbound socket.
	ErrNoChannel = errors.New("no channel to peer")
)
