// ============================================================================
// Mimic end-to-end tests
// ============================================================================
//
// Package: test/integration
// File: roundtrip_test.go
// Purpose: Drive a fully wired daemon through its control service the way a
//          user drives it through hotkeys.
//
// TestRecordSaveReplayRoundTrip:
//   record -> emit input -> save -> replay, then check that
//   - the file on disk holds every captured event, clicks as presses only
//   - replay injects the same positions and clicks in the same order
//   - the replay keeps the recorded spacing between events
//   - every replayed event is observed by the replay lag histogram
//
// TestScriptedSessionOverControl:
//   a repeat loop submitted remotely keeps typing until the exit interrupt
//   preempts it and stops the daemon cleanly.
//
// ============================================================================

package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TeYo001/Mimic/internal/cli"
	"github.com/TeYo001/Mimic/internal/config"
	"github.com/TeYo001/Mimic/internal/input"
	"github.com/TeYo001/Mimic/internal/remote"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type daemon struct {
	app    *cli.App
	client *remote.Client
	done   chan error
	file   string
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()

	cfg := config.Default()
	cfg.Daemon = true
	cfg.SpecialKeys = true
	cfg.RecordingFile = filepath.Join(t.TempDir(), "save.txt")
	cfg.Control = config.ServeConfig{Enabled: true, Addr: "127.0.0.1:0"}
	cfg.Timing.ScriptedPoll = 20 * time.Millisecond
	cfg.Timing.Tick = time.Millisecond
	cfg.Log.Level = "error"

	var logs bytes.Buffer
	log, err := cfg.NewLogger(&logs)
	require.NoError(t, err)

	app, err := cli.NewApp(cfg, log)
	require.NoError(t, err)

	d := &daemon{app: app, done: make(chan error, 1), file: cfg.RecordingFile}
	go func() { d.done <- app.Run(context.Background(), nil) }()

	client, conn, err := remote.Dial(app.ControlAddr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	d.client = client
	return d
}

func (d *daemon) interrupt(t *testing.T, state string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.client.Interrupt(ctx, state, ""))
}

func (d *daemon) waitState(t *testing.T, st types.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return d.app.Scheduler.State() == st
	}, 5*time.Second, time.Millisecond, "waiting for %s", st)
}

func (d *daemon) stop(t *testing.T) {
	t.Helper()
	d.interrupt(t, "exit")
	select {
	case err := <-d.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func injected(ops []input.Op) []input.Op {
	var out []input.Op
	for _, op := range ops {
		if op.Kind == input.OpSetPosition || op.Kind == input.OpClick {
			out = append(out, op)
		}
	}
	return out
}

func TestRecordSaveReplayRoundTrip(t *testing.T) {
	d := startDaemon(t)
	dev := d.app.Device

	d.interrupt(t, "record")
	d.waitState(t, types.StateRecording)
	time.Sleep(20 * time.Millisecond)

	dev.EmitMove(10, 10)
	time.Sleep(30 * time.Millisecond)
	dev.EmitClick(types.ButtonLeft, true)
	dev.EmitClick(types.ButtonLeft, false)
	time.Sleep(30 * time.Millisecond)
	dev.EmitMove(20, 40)

	d.interrupt(t, "save")
	require.Eventually(t, func() bool {
		_, err := os.Stat(d.file)
		return err == nil
	}, 5*time.Second, 5*time.Millisecond)
	d.waitState(t, types.StateIdle)

	data, err := os.ReadFile(d.file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "clicks are recorded as presses only")

	dev.Reset()
	d.interrupt(t, "replay")
	require.Eventually(t, func() bool {
		return len(injected(dev.Ops())) == 3
	}, 5*time.Second, time.Millisecond)

	ops := injected(dev.Ops())
	assert.Equal(t, input.OpSetPosition, ops[0].Kind)
	assert.Equal(t, [2]int{10, 10}, [2]int{ops[0].X, ops[0].Y})
	assert.Equal(t, input.OpClick, ops[1].Kind)
	assert.Equal(t, types.ButtonLeft, ops[1].Button)
	assert.Equal(t, [2]int{20, 40}, [2]int{ops[2].X, ops[2].Y})

	// spacing between the recorded events survives the round trip
	assert.GreaterOrEqual(t, ops[2].At.Sub(ops[0].At), 55*time.Millisecond)

	families, err := d.app.Registry.Gather()
	require.NoError(t, err)
	var lagSamples uint64
	for _, mf := range families {
		if mf.GetName() == "mimic_replay_lag_seconds" {
			lagSamples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.EqualValues(t, 3, lagSamples)

	d.stop(t)
}

func TestScriptedSessionOverControl(t *testing.T) {
	d := startDaemon(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := d.client.Submit(ctx, "type 'ab' wait_time 0.005 repeat")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	presses := func() int {
		count := 0
		for _, op := range d.app.Device.Ops() {
			if op.Kind == input.OpPress {
				count++
			}
		}
		return count
	}
	require.Eventually(t, func() bool { return presses() >= 6 }, 5*time.Second, time.Millisecond,
		"the program repeats")

	st, err := d.client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Daemon)
	assert.GreaterOrEqual(t, st.Dispatched, uint64(6))

	d.stop(t)
}
