package types

// Kind is one of the closed set of ASCII message tokens the wire protocol
// exchanges. Values are the literal tokens carried on the wire.
type Kind string

const (
	ParentRequest      Kind = "be_my_parent"
	ParentAck          Kind = "you_are_my_child"
	ParentReject       Kind = "you_are_not_my_child"
	LeaderAnnouncement Kind = "leader_announcement"
	Error              Kind = "error"
)

// Valid reports whether k belongs to the closed set of wire message kinds.
func (k Kind) Valid() bool {
	switch k {
	case ParentRequest, ParentAck, ParentReject, LeaderAnnouncement, Error:
		return true
	default:
		return false
	}
}

// Message is a single parsed protocol frame: a kind plus its one decimal
// integer payload. For ParentRequest/ParentAck/ParentReject/Error the
// payload is the sender's node id; for LeaderAnnouncement it is the elected
// leader's id.
type Message struct {
	Kind    Kind
	Payload int
}
