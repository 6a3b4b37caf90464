package event

import "time"

// HandshakeTransition is emitted whenever a module's sim-side handshake
// changes state.
type HandshakeTransition struct {
	Module string
	From   string
	To     string
	Order  int32
	Msg    int32
	At     time.Time
}

// SnapshotSaved is emitted after the layout was written to the snapshot store.
type SnapshotSaved struct {
	ID       string
	Name     string
	Entities int
}
