package system

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingSystem struct {
	phase Phase
	name  string
	log   *[]string
}

func (s *recordingSystem) Phase() Phase { return s.phase }
func (s *recordingSystem) Update(time.Duration) {
	*s.log = append(*s.log, s.name)
}

func TestRunner_PhaseOrder(t *testing.T) {
	var got []string
	r := NewRunner(zap.NewNop())
	r.Register(&recordingSystem{PhaseRender, "render", &got})
	r.Register(&recordingSystem{PhaseTrigger, "trigger", &got})
	r.Register(&recordingSystem{PhaseDispatch, "dispatch-a", &got})
	r.Register(&recordingSystem{PhaseDispatch, "dispatch-b", &got})
	r.Register(&recordingSystem{PhaseNotify, "notify", &got})

	r.Tick(100 * time.Millisecond)

	assert.Equal(t, []string{"notify", "trigger", "dispatch-a", "dispatch-b", "render"}, got)
	assert.Equal(t, uint64(1), r.Ticks())
}

func TestRunner_TickPhase(t *testing.T) {
	var got []string
	r := NewRunner(zap.NewNop())
	r.Register(&recordingSystem{PhaseLogic, "logic", &got})
	r.Register(&recordingSystem{PhaseHandshake, "handshake", &got})

	r.TickPhase(PhaseHandshake, 0)

	assert.Equal(t, []string{"handshake"}, got)
}

func TestNextDelay(t *testing.T) {
	rate := 100 * time.Millisecond

	assert.Equal(t, 70*time.Millisecond, NextDelay(rate, 30*time.Millisecond))
	assert.Equal(t, time.Millisecond, NextDelay(rate, 100*time.Millisecond))
	assert.Equal(t, time.Millisecond, NextDelay(rate, 250*time.Millisecond))
}

type countingSystem struct{ n atomic.Int64 }

func (s *countingSystem) Phase() Phase         { return PhaseTrigger }
func (s *countingSystem) Update(time.Duration) { s.n.Add(1) }

func TestRunner_RunStopsOnCancel(t *testing.T) {
	counter := &countingSystem{}
	r := NewRunner(zap.NewNop())
	r.Register(counter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, true)
		close(done)
	}()

	assert.Eventually(t, func() bool { return counter.n.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
