package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/twinsim/twinsim/internal/core/event"
	coresys "github.com/twinsim/twinsim/internal/core/system"
	"github.com/twinsim/twinsim/internal/handshake"
	"github.com/twinsim/twinsim/internal/persist"
	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/scripting"
	"github.com/twinsim/twinsim/internal/sim"
	"github.com/twinsim/twinsim/internal/system"
)

const (
	sampleLayout  = "../../layouts/plant.yaml"
	sampleScripts = "../../scripts"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLayoutValidateSample(t *testing.T) {
	out, err := execute(t, "layout", "validate", sampleLayout)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Module")
	assert.Contains(t, out, "Picker")
}

func TestLayoutValidateRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, persist.WriteFile(path, persist.Record{
		Type:     persist.WorldTag,
		Children: []persist.Record{{Type: "Teleporter"}},
	}))
	_, err := execute(t, "layout", "validate", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, persist.ErrDeserialize)
}

func TestLayoutConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	asJSON := filepath.Join(dir, "plant.json")
	_, err := execute(t, "layout", "convert", sampleLayout, asJSON)
	require.NoError(t, err)

	rec, err := persist.ReadFile(asJSON)
	require.NoError(t, err)
	orig, err := persist.ReadFile(sampleLayout)
	require.NoError(t, err)
	assert.Equal(t, orig.Count(), rec.Count())

	back := filepath.Join(dir, "plant.yml")
	_, err = execute(t, "layout", "convert", asJSON, back)
	require.NoError(t, err)
	again, err := persist.ReadFile(back)
	require.NoError(t, err)
	want, err := persist.Marshal(persist.FormatJSON, rec)
	require.NoError(t, err)
	got, err := persist.Marshal(persist.FormatJSON, again)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got), "a normalized layout converts to itself")
}

func TestLayoutStoreCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "twinsim.toml")
	dsn := filepath.Join(dir, "twin.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[database]\ndriver = \"sqlite\"\ndsn = \""+filepath.ToSlash(dsn)+"\"\n"), 0o644))

	out, err := execute(t, "-c", cfgPath, "layout", "load", sampleLayout, "--name", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "stored as snapshot")

	out, err = execute(t, "-c", cfgPath, "layout", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "demo")

	saved := filepath.Join(dir, "saved.yaml")
	_, err = execute(t, "-c", cfgPath, "layout", "save", saved, "--name", "demo")
	require.NoError(t, err)
	rec, err := persist.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, persist.WorldTag, rec.Type)
	assert.Len(t, rec.Children, 2)
}

func TestLayoutStoreNeedsDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twinsim.toml")
	require.NoError(t, os.WriteFile(path, []byte("[database]\ndriver = \"none\"\n"), 0o644))
	_, err := execute(t, "-c", path, "layout", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshots need a store")
}

func TestOrderNeedsNumberOrReset(t *testing.T) {
	_, err := execute(t, "order", "127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--reset")
}

// runModule steps the sim side of a handshake in the background and
// finishes every order one tick after it was latched.
func runModule(ctx context.Context, vars *handshake.Variables) <-chan struct{} {
	done := make(chan struct{})
	st := &handshake.Status{}
	st.SetReady(true)
	hs := handshake.NewSim("m1", vars, st, nil, zap.NewNop())
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if st.Busy && st.Order != 0 {
				st.Msg = st.Order * 10
				st.Busy = false
			}
			hs.Step()
		}
	}()
	return done
}

func TestPlaceOrderCompletes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vars := &handshake.Variables{}
	done := runModule(ctx, vars)

	msg, err := placeOrder(ctx, handshake.Local{Vars: vars}, 3, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(30), msg)
	cancel()
	<-done
}

func TestPlaceOrderGivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// nobody answers: ready never rises
	_, err := placeOrder(ctx, handshake.Local{Vars: &handshake.Variables{}}, 1, time.Millisecond, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "sent")
}

func TestResetHandshake(t *testing.T) {
	vars := &handshake.Variables{}
	vars.SetStart(true)
	require.NoError(t, resetHandshake(context.Background(), handshake.Local{Vars: vars}))
	assert.False(t, vars.Start())
	assert.Equal(t, int32(handshake.ResetOrder), vars.Order())
}

func TestPrintVariables(t *testing.T) {
	var out bytes.Buffer
	printVariables(&out, map[handshake.VarID]int32{handshake.VarMsg: 7, handshake.VarReady: 1})
	assert.Contains(t, out.String(), "msg    7")
	assert.Contains(t, out.String(), "ready  1")
}

// TestSamplePlantRunsOrder loads the shipped layout and scripts, wires the
// same systems as run and completes a feeder order through the controller.
func TestSamplePlantRunsOrder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	w := sim.NewWorld(log, sim.WithLayers(2))
	rec, err := persist.ReadFile(sampleLayout)
	require.NoError(t, err)
	_, err = persist.Load(w, &plant.Codecs, w.Root(), rec)
	require.NoError(t, err)

	engine, err := scripting.NewEngine(sampleScripts, log)
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.Load(w))
	require.Equal(t, 2, engine.Attached())

	bus := event.NewBus()
	runner := coresys.NewRunner(log)
	runner.Register(system.NewNotifySystem(bus))
	system.RegisterWorld(runner, w, nil)
	runner.Register(system.NewLogicSystem(w, engine))
	runner.Register(system.NewHandshakeSystem(w, bus, log))

	feeder, ok := plant.ModuleByName(w, "feeder")
	require.True(t, ok)
	ctrl := handshake.NewController(handshake.Local{Vars: feeder.Vars}, zap.NewNop())
	require.NoError(t, ctrl.Place(1))
	for i := 0; i < 200 && !ctrl.Idle(); i++ {
		runner.Tick(20 * time.Millisecond)
		require.NoError(t, ctrl.Poll(context.Background()))
	}
	require.True(t, ctrl.Idle(), "feeder stuck in %s", ctrl.State())
	assert.Equal(t, int32(1), ctrl.Msg())
	assert.Zero(t, logs.Len(), "no warnings or script errors: %v", logs.All())
}
