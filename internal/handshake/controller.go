package handshake

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Endpoint is the controller's access to a module's variables, either in
// process or across the network.
type Endpoint interface {
	Read(ctx context.Context, id VarID) (int32, error)
	Write(ctx context.Context, id VarID, val int32) error
}

// Local serves a Variables set as an Endpoint without a transport.
type Local struct{ Vars *Variables }

func (l Local) Read(_ context.Context, id VarID) (int32, error) { return l.Vars.Load(id) }

func (l Local) Write(_ context.Context, id VarID, val int32) error {
	return l.Vars.Store(id, val)
}

// ControllerState is the controller-side handshake progress.
type ControllerState uint8

const (
	ControllerIdle ControllerState = iota
	ControllerSent
	ControllerStartCleared
	ControllerAwaitIdle
)

func (s ControllerState) String() string {
	switch s {
	case ControllerIdle:
		return "idle"
	case ControllerSent:
		return "sent"
	case ControllerStartCleared:
		return "start_cleared"
	case ControllerAwaitIdle:
		return "await_idle"
	}
	return fmt.Sprintf("ControllerState(%d)", uint8(s))
}

// Controller drives the external side: request, wait for the latch,
// release, wait for completion. Poll never blocks on the handshake itself.
type Controller struct {
	ep    Endpoint
	log   *zap.Logger
	state ControllerState
	order int32
	msg   int32
}

func NewController(ep Endpoint, log *zap.Logger) *Controller {
	return &Controller{ep: ep, log: log}
}

func (c *Controller) State() ControllerState { return c.state }

// Msg returns the module message read by the last Poll.
func (c *Controller) Msg() int32 { return c.msg }

// Order returns the order being (or last) placed.
func (c *Controller) Order() int32 { return c.order }

// Idle reports whether a new order may be placed.
func (c *Controller) Idle() bool { return c.state == ControllerIdle }

// Place queues order for the next Poll. Only accepted while idle.
func (c *Controller) Place(order int32) error {
	if c.state != ControllerIdle {
		return fmt.Errorf("place order %d in state %s: %w", order, c.state, ErrBusy)
	}
	c.order = order
	c.set(ControllerSent)
	return nil
}

// Poll performs one controller step. The rules cascade within one call,
// so an already acknowledged order clears start in the same poll.
func (c *Controller) Poll(ctx context.Context) error {
	msg, err := c.ep.Read(ctx, VarMsg)
	if err != nil {
		return fmt.Errorf("read msg: %w", err)
	}
	c.msg = msg

	if c.state == ControllerSent {
		ready, err := c.ep.Read(ctx, VarReady)
		if err != nil {
			return fmt.Errorf("read ready: %w", err)
		}
		if ready != 0 {
			if err := c.ep.Write(ctx, VarOrder, c.order); err != nil {
				return fmt.Errorf("write order: %w", err)
			}
			if err := c.ep.Write(ctx, VarStart, 1); err != nil {
				return fmt.Errorf("write start: %w", err)
			}
			ack, err := c.ep.Read(ctx, VarAck)
			if err != nil {
				return fmt.Errorf("read ack: %w", err)
			}
			if ack != 0 {
				c.set(ControllerStartCleared)
			}
		}
	}
	if c.state == ControllerStartCleared {
		if err := c.ep.Write(ctx, VarStart, 0); err != nil {
			return fmt.Errorf("clear start: %w", err)
		}
		ack, err := c.ep.Read(ctx, VarAck)
		if err != nil {
			return fmt.Errorf("read ack: %w", err)
		}
		if ack == 0 {
			c.set(ControllerAwaitIdle)
		}
	}
	if c.state == ControllerAwaitIdle {
		busy, err := c.ep.Read(ctx, VarBusy)
		if err != nil {
			return fmt.Errorf("read busy: %w", err)
		}
		if busy == 0 {
			c.set(ControllerIdle)
		}
	}
	return nil
}

func (c *Controller) set(s ControllerState) {
	c.log.Debug("controller state",
		zap.Stringer("from", c.state),
		zap.Stringer("to", s),
		zap.Int32("order", c.order))
	c.state = s
}
