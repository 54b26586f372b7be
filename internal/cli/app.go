package cli

// ============================================================================
// Process wiring
//
//   Virtual device ──▶ hotkey listener ──▶ interrupt queue ─┐
//         │                                                 ├─▶ Scheduler ──▶ Virtual device
//         └────────▶ capture listener ──▶ event buffer      │        │
//   control service ──────────────────▶ scripted queue ─────┘        └─▶ recording files
//
// Construction order follows the listener contract: every queue and the
// hotkey handler exist before a listener is started, and the listeners are
// stopped before Run returns.
// ============================================================================

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/TeYo001/Mimic/internal/capture"
	"github.com/TeYo001/Mimic/internal/config"
	"github.com/TeYo001/Mimic/internal/hotkey"
	"github.com/TeYo001/Mimic/internal/input"
	"github.com/TeYo001/Mimic/internal/metrics"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/internal/remote"
	"github.com/TeYo001/Mimic/internal/scheduler"
	"github.com/TeYo001/Mimic/internal/storage/recording"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is one fully wired mimic process
type App struct {
	cfg config.Config
	log *slog.Logger

	Device    *input.Virtual
	Registry  *prometheus.Registry
	Scheduler *scheduler.Scheduler

	interrupts  *queue.ActionQueue
	scripted    *queue.ActionQueue
	hotListener input.Listener
	control     net.Listener
	controlAddr string

	// bounds hotkey pushes onto a full interrupt queue
	pushCtx    context.Context
	cancelPush context.CancelFunc
}

// NewApp builds every component described by cfg. The hotkey listener is
// running when NewApp returns; the scheduler starts with Run.
func NewApp(cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	bindings, err := cfg.Bindings()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		log:        log,
		Device:     input.NewVirtual(log),
		Registry:   prometheus.NewRegistry(),
		interrupts: queue.NewActionQueue("interrupt", cfg.Queues.Interrupt),
		scripted:   queue.NewActionQueue("scripted", cfg.Queues.Scripted),
	}
	a.pushCtx, a.cancelPush = context.WithCancel(context.Background())

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(a.Registry)

	events := queue.NewEventBuffer(cfg.Queues.Events)
	hotkeys := hotkey.NewHandler(a.pushCtx, hotkey.Options{
		Bindings:    bindings,
		SpecialKeys: cfg.SpecialKeys,
		Queue:       a.interrupts,
		Logger:      log,
	})
	recorder := capture.NewRecorder(capture.Options{
		Buffer:  events,
		Ignore:  bindings.Keys(),
		Metrics: collector,
	})

	a.Scheduler, err = scheduler.New(scheduler.Options{
		Config:     cfg.Scheduler(),
		Interrupts: a.interrupts,
		Scripted:   a.scripted,
		Events:     events,
		Controller: a.Device,
		Capture:    a.Device.Listen(recorder.Callbacks()),
		Hotkeys:    hotkeys,
		Store:      recording.NewFileStore(),
		Metrics:    collector,
		Logger:     log,
	})
	if err != nil {
		a.cancelPush()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if cfg.Control.Enabled {
		a.control, err = net.Listen("tcp", cfg.Control.Addr)
		if err != nil {
			a.cancelPush()
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Control.Addr, err)
		}
		a.controlAddr = a.control.Addr().String()
	}

	a.hotListener = a.Device.Listen(hotkeys.Callbacks())
	if err := a.hotListener.Start(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	return a, nil
}

// ControlAddr is the bound control-service address, empty when disabled
func (a *App) ControlAddr() string {
	return a.controlAddr
}

// Run queues prog (may be nil) and runs the scheduler until it stops or ctx
// ends. The metrics and control servers live exactly as long as Run.
func (a *App) Run(ctx context.Context, prog *types.Program) error {
	defer a.Close()

	if prog != nil && prog.Len() > 0 {
		n, err := a.Scheduler.Submit(prog)
		if err != nil {
			return fmt.Errorf("failed to queue script: %w", err)
		}
		a.log.Info("Script queued", "actions", n)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.log.Info("Starting metrics server", "addr", a.cfg.Metrics.Addr)
			if err := metrics.Serve(ctx, a.cfg.Metrics.Addr, a.Registry); err != nil {
				a.log.Error("Metrics server error", "error", err)
			}
		}()
	}
	if a.control != nil {
		lis := a.control
		a.control = nil
		srv := remote.NewServer(a.Scheduler, a.cfg.Queues.Scripted, a.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := remote.Serve(ctx, lis, srv); err != nil {
				a.log.Error("Control service error", "error", err)
			}
		}()
	}

	err := a.Scheduler.Run(ctx)
	cancel()
	wg.Wait()

	a.log.Info("Mimic stopped", "dispatched", a.Scheduler.Status().Dispatched)
	return err
}

// Close stops the hotkey listener and releases an unused control listener.
// Safe to call more than once.
func (a *App) Close() {
	a.cancelPush()
	if a.hotListener != nil {
		if err := a.hotListener.Stop(); err != nil {
			a.log.Debug("Hotkey listener already stopped", "error", err)
		}
	}
	if a.control != nil {
		a.control.Close()
		a.control = nil
	}
	a.interrupts.Close()
	a.scripted.Close()
}
