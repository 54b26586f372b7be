// ============================================================================
// Mimic CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: cobra command tree, configuration precedence and exit codes
//
// Command Structure:
//   mimic                          # Run the scheduler
//   │   ├── -d, --daemon           # keep running when the queues drain
//   │   ├── -f, --force            # self-completing actions are never preempted
//   │   ├── -c, --command=SCRIPT   # queue a command script
//   │   ├── -s, --special-keys     # enable the record / replay / save hotkeys
//   │   └── --config FILE          # YAML configuration
//   ├── check SCRIPT               # parse a script and list its actions
//   ├── send SCRIPT                # submit a script to a running daemon
//   ├── interrupt STATE            # press a hotkey on a running daemon
//   └── status                     # show a running daemon's state
//
// Precedence: built-in defaults < config file < flags. Running `mimic` with
// no flags at all starts an interactive daemon: daemon mode, special keys and
// the control service are all switched on.
//
// Examples:
//   mimic -c="type 'hello world' wait_time 1 repeat"
//   mimic -d -f --config mimic.yaml
//   mimic check "await_press f1 replay demo.txt"
//   mimic interrupt record
//   mimic send "type 'hi'"
//
// Exit codes:
//   0  the scheduler stopped normally (exit hotkey, starvation or a signal)
//   1  configuration or script error, or a failed remote call
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TeYo001/Mimic/internal/config"
	"github.com/TeYo001/Mimic/internal/remote"
	"github.com/TeYo001/Mimic/internal/script"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/spf13/cobra"
)

// Version is reported by --version
var Version = "0.3.0"

const rpcTimeout = 10 * time.Second

type rootOptions struct {
	configFile  string
	daemon      bool
	force       bool
	specialKeys bool
	command     string
}

// BuildCLI returns the root command
func BuildCLI() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "mimic",
		Short: "Mimic: record, replay and script mouse and keyboard input",
		Long: `Mimic records mouse and keyboard input with timestamps, replays it with
the original timing and runs command scripts (type, wait_time, await_press,
repeat) under hotkey control.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVarP(&opts.daemon, "daemon", "d", false, "keep running when there is no work left")
	flags.BoolVarP(&opts.force, "force", "f", false, "never preempt self-completing actions")
	flags.BoolVarP(&opts.specialKeys, "special-keys", "s", false, "enable the record, replay and save hotkeys")
	flags.StringVarP(&opts.command, "command", "c", "", "command script to run")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (YAML)")

	rootCmd.AddCommand(buildCheckCommand(opts))
	rootCmd.AddCommand(buildSendCommand(opts))
	rootCmd.AddCommand(buildInterruptCommand(opts))
	rootCmd.AddCommand(buildStatusCommand(opts))

	return rootCmd
}

// Execute runs the command tree against os.Args
func Execute() error {
	return BuildCLI().ExecuteContext(context.Background())
}

// ============================================================================
// Root: run the scheduler
// ============================================================================

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	prog, err := parseScript(cfg, opts.command, log)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Mimic starting",
		"daemon", cfg.Daemon,
		"specialKeys", cfg.SpecialKeys,
		"forceMustFinish", cfg.ForceMustFinish,
		"control", app.ControlAddr(),
	)

	err = app.Run(ctx, prog)
	if errors.Is(err, context.Canceled) {
		log.Info("Received shutdown signal, stopped")
		return nil
	}
	return err
}

// resolveConfig applies the flags on top of the config file
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().NFlag() == 0 {
		cfg.Daemon = true
		cfg.SpecialKeys = true
		cfg.Control.Enabled = true
	}
	if opts.daemon {
		cfg.Daemon = true
	}
	if opts.force {
		cfg.ForceMustFinish = true
	}
	if cmd.Flags().Changed("special-keys") {
		cfg.SpecialKeys = opts.specialKeys
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// parseScript parses src for the scripted queue. An empty script is nil.
func parseScript(cfg config.Config, src string, log *slog.Logger) (*types.Program, error) {
	if src == "" {
		return nil, nil
	}
	p := script.NewParser(script.Options{MaxActions: cfg.Queues.Scripted, Logger: log})
	prog, err := p.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid command script: %w", err)
	}
	return prog, nil
}

// ============================================================================
// check
// ============================================================================

func buildCheckCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check SCRIPT",
		Short: "Parse a command script and list its actions",
		Long:  "Parse a command script without running it. Exits 1 if the script is invalid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			prog, err := script.NewParser(script.Options{MaxActions: cfg.Queues.Scripted, Logger: log}).Parse(args[0])
			if err != nil {
				printCheckError(cmd.OutOrStdout(), args[0], err)
				return fmt.Errorf("invalid command script: %w", err)
			}
			printProgram(cmd.OutOrStdout(), prog)
			return nil
		},
	}
	return cmd
}

// ============================================================================
// Remote commands
// ============================================================================

func addAddrFlag(cmd *cobra.Command, addr *string) {
	cmd.Flags().StringVar(addr, "addr", "", "control service address (default: control.addr from config)")
}

// controlAddr picks --addr, else control.addr from the config file
func controlAddr(opts *rootOptions, addr string) (string, error) {
	if addr != "" {
		return addr, nil
	}
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.Control.Addr, nil
}

// withClient dials the control service and runs fn with a bounded context
func withClient(cmd *cobra.Command, opts *rootOptions, addr string, fn func(context.Context, *remote.Client) error) error {
	addr, err := controlAddr(opts, addr)
	if err != nil {
		return err
	}
	client, conn, err := remote.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return fn(ctx, client)
}

func buildSendCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "send SCRIPT",
		Short: "Submit a command script to a running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, addr, func(ctx context.Context, c *remote.Client) error {
				n, err := c.Submit(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %d actions\n", n)
				return nil
			})
		},
	}
	addAddrFlag(cmd, &addr)
	return cmd
}

func buildInterruptCommand(opts *rootOptions) *cobra.Command {
	var addr, file string

	cmd := &cobra.Command{
		Use:       "interrupt STATE",
		Short:     "Press a hotkey on a running daemon (record, replay, save, idle, exit)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"record", "replay", "save", "idle", "exit"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := remote.ParseInterrupt(args[0]); err != nil {
				return err
			}
			return withClient(cmd, opts, addr, func(ctx context.Context, c *remote.Client) error {
				if err := c.Interrupt(ctx, args[0], file); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "interrupt %s sent\n", args[0])
				return nil
			})
		},
	}
	addAddrFlag(cmd, &addr)
	cmd.Flags().StringVar(&file, "file", "", "recording file for save and replay")
	return cmd
}

func buildStatusCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, addr, func(ctx context.Context, c *remote.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
	addAddrFlag(cmd, &addr)
	return cmd
}
