// Package handshake implements the four-phase order handshake between a
// simulated module and its external controller.
//
// The six exchange variables are single-field atomic cells: the tick loop
// and the network workers touch them concurrently, but no transition ever
// needs more than one field to change atomically.
package handshake

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrUnknownVar is returned for variable IDs outside the handshake set.
	ErrUnknownVar = errors.New("unknown handshake variable")
	// ErrBusy is returned by Controller.Place while a handshake is running.
	ErrBusy = errors.New("handshake in progress")
)

// VarID addresses one exchange variable on the wire.
type VarID uint8

const (
	VarStart VarID = iota + 1
	VarOrder
	VarAck
	VarBusy
	VarReady
	VarMsg
)

// AllVars lists the variables in wire order.
var AllVars = [...]VarID{VarStart, VarOrder, VarAck, VarBusy, VarReady, VarMsg}

func (v VarID) String() string {
	switch v {
	case VarStart:
		return "start"
	case VarOrder:
		return "order"
	case VarAck:
		return "ack"
	case VarBusy:
		return "busy"
	case VarReady:
		return "ready"
	case VarMsg:
		return "msg"
	}
	return fmt.Sprintf("VarID(%d)", uint8(v))
}

// Writable reports whether the controller may write v.
func (v VarID) Writable() bool { return v == VarStart || v == VarOrder }

// ResetOrder is the reserved order value that forces the sim side back to
// idle from any state.
const ResetOrder = 11

// Variables is the exchange surface of one module.
type Variables struct {
	start atomic.Bool
	order atomic.Int32
	ack   atomic.Bool
	busy  atomic.Bool
	ready atomic.Bool
	msg   atomic.Int32
}

func (v *Variables) Start() bool      { return v.start.Load() }
func (v *Variables) SetStart(b bool)  { v.start.Store(b) }
func (v *Variables) Order() int32     { return v.order.Load() }
func (v *Variables) SetOrder(o int32) { v.order.Store(o) }
func (v *Variables) Ack() bool        { return v.ack.Load() }
func (v *Variables) SetAck(b bool)    { v.ack.Store(b) }
func (v *Variables) Busy() bool       { return v.busy.Load() }
func (v *Variables) SetBusy(b bool)   { v.busy.Store(b) }
func (v *Variables) Ready() bool      { return v.ready.Load() }
func (v *Variables) SetReady(b bool)  { v.ready.Store(b) }
func (v *Variables) Msg() int32       { return v.msg.Load() }
func (v *Variables) SetMsg(m int32)   { v.msg.Store(m) }

// Load reads a variable by ID; flags read as 0 or 1.
func (v *Variables) Load(id VarID) (int32, error) {
	switch id {
	case VarStart:
		return b2i(v.Start()), nil
	case VarOrder:
		return v.Order(), nil
	case VarAck:
		return b2i(v.Ack()), nil
	case VarBusy:
		return b2i(v.Busy()), nil
	case VarReady:
		return b2i(v.Ready()), nil
	case VarMsg:
		return v.Msg(), nil
	}
	return 0, fmt.Errorf("load %d: %w", id, ErrUnknownVar)
}

// Store writes a variable by ID; any non-zero value sets a flag. Store does
// not check writability, that is the transport's job.
func (v *Variables) Store(id VarID, val int32) error {
	switch id {
	case VarStart:
		v.SetStart(val != 0)
	case VarOrder:
		v.SetOrder(val)
	case VarAck:
		v.SetAck(val != 0)
	case VarBusy:
		v.SetBusy(val != 0)
	case VarReady:
		v.SetReady(val != 0)
	case VarMsg:
		v.SetMsg(val)
	default:
		return fmt.Errorf("store %d: %w", id, ErrUnknownVar)
	}
	return nil
}

// Snapshot reads all six variables in wire order. Each read is atomic on
// its own; the set as a whole is not.
func (v *Variables) Snapshot() [len(AllVars)]int32 {
	var out [len(AllVars)]int32
	for i, id := range AllVars {
		out[i], _ = v.Load(id)
	}
	return out
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
