// shellherd drives managed interpreter subprocesses from the command line.
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/virtengine/shellherd"
	"github.com/virtengine/shellherd/internal/config"
	"github.com/virtengine/shellherd/internal/interp"
)

var (
	flagConfig     string
	flagCandidates []string
	flagSession    string
	flagTimeout    time.Duration
	flagBootstrap  bool
	flagBypass     bool
	flagVerbose    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shellherd:", err)

		return 1
	}

	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shellherd",
		Short:         "Drive managed interpreter subprocesses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a TOML engine config file")
	root.PersistentFlags().StringSliceVar(&flagCandidates, "interpreter", nil,
		"ordered interpreter candidates (overrides config)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log engine operations to stderr")

	root.AddCommand(newExecCmd())
	root.AddCommand(newScriptCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(newCountCmd())

	return root
}

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command>",
		Short: "Run one command in a fresh interpreter process or a named session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcess(cmd.Context(), func(eng shellherd.Engine, p *shellherd.Process) error {
				out, err := eng.Execute(cmd.Context(), p, strings.Join(args, " "), flagTimeout)
				if err != nil {
					return err
				}

				fmt.Println(out)

				return nil
			})
		},
	}

	addExecFlags(cmd)

	return cmd
}

func newScriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Run commands from stdin, one per line, in a single interpreter process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProcess(cmd.Context(), func(eng shellherd.Engine, p *shellherd.Process) error {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					line := strings.TrimSpace(scanner.Text())
					if line == "" || strings.HasPrefix(line, "#") {
						continue
					}

					out, err := eng.Execute(cmd.Context(), p, line, flagTimeout)
					if err != nil {
						return fmt.Errorf("%q: %w", line, err)
					}

					fmt.Println(out)
				}

				return scanner.Err()
			})
		},
	}

	addExecFlags(cmd)

	return cmd
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the interpreter executable the engine would use",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cfg.Normalize()

			path, err := interp.NewResolver(cfg.Logger, cfg.Candidates).Resolve()
			if err != nil {
				return err
			}

			fmt.Println(path)

			return nil
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Force-terminate every process the engine tracks",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(eng shellherd.Engine) error {
				count := eng.ProcessCount()
				eng.CleanupAll()

				fmt.Printf("cleaned up %d process(es)\n", count)

				return nil
			})
		},
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of processes the engine tracks",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(eng shellherd.Engine) error {
				fmt.Println(eng.ProcessCount())

				return nil
			})
		},
	}
}

func addExecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagSession, "session", "s", "",
		"run in the named persistent session instead of a one-shot process")
	cmd.Flags().DurationVarP(&flagTimeout, "timeout", "t", 60*time.Second, "per-command timeout")
	cmd.Flags().BoolVar(&flagBootstrap, "bootstrap", false, "run the capability bootstrap before commands")
	cmd.Flags().BoolVar(&flagBypass, "bypass", false, "mark the capability as preconfigured instead of bootstrapping")
}

// withEngine runs fn against a started engine and handles shutdown.
func withEngine(fn func(eng shellherd.Engine) error) error {
	opts, err := engineOptions()
	if err != nil {
		return err
	}

	eng := shellherd.New(opts...)
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	return fn(eng)
}

// withProcess runs fn against an interpreter process: the named session
// when --session is set, a freshly launched one-shot process otherwise.
// One-shot processes are terminated afterwards; session processes are left
// to the engine's shutdown cleanup.
func withProcess(ctx context.Context, fn func(eng shellherd.Engine, p *shellherd.Process) error) error {
	return withEngine(func(eng shellherd.Engine) error {
		var (
			p   *shellherd.Process
			err error
		)

		if flagSession != "" {
			p, err = eng.Session(flagSession)
			if stderrors.Is(err, shellherd.ErrSessionNotFound) {
				p, err = eng.CreateSession(ctx, flagSession)
			}
		} else {
			p, err = eng.Launch(ctx)
			if err == nil {
				defer eng.Terminate(p, 5*time.Second)
			}
		}

		if err != nil {
			return err
		}

		if flagBootstrap || flagBypass {
			result, err := eng.Bootstrap(ctx, p, flagBypass)
			if err != nil {
				return fmt.Errorf("bootstrap (%v): %w", result.Errors, err)
			}

			for _, warning := range result.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", warning)
			}
		}

		return fn(eng, p)
	})
}

// loadConfig builds engine settings from the config file and flags.
func loadConfig() (*config.Options, error) {
	cfg := &config.Options{}

	if flagConfig != "" {
		if err := config.LoadFile(flagConfig, cfg); err != nil {
			return nil, err
		}
	}

	if len(flagCandidates) > 0 {
		cfg.Candidates = flagCandidates
	}

	if flagVerbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	return cfg, nil
}

// engineOptions maps loaded settings onto engine options.
func engineOptions() ([]shellherd.Option, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var opts []shellherd.Option

	if cfg.Logger != nil {
		opts = append(opts, shellherd.WithLogger(cfg.Logger))
	}

	if len(cfg.Candidates) > 0 {
		opts = append(opts, shellherd.WithCandidates(cfg.Candidates...))
	}

	if cfg.ExtraArgs != nil {
		opts = append(opts, shellherd.WithExtraArgs(cfg.ExtraArgs...))
	}

	if cfg.EchoFormat != "" {
		opts = append(opts, shellherd.WithEchoFormat(cfg.EchoFormat))
	}

	if cfg.ExitCommand != "" {
		opts = append(opts, shellherd.WithExitCommand(cfg.ExitCommand))
	}

	if cfg.Env != nil {
		opts = append(opts, shellherd.WithEnv(cfg.Env))
	}

	if cfg.Cwd != "" {
		opts = append(opts, shellherd.WithCwd(cfg.Cwd))
	}

	if cfg.PollInterval > 0 {
		opts = append(opts, shellherd.WithPollInterval(cfg.PollInterval))
	}

	if cfg.StallWarnAfter > 0 {
		opts = append(opts, shellherd.WithStallWarning(cfg.StallWarnAfter))
	}

	if cfg.LaunchGrace > 0 {
		opts = append(opts, shellherd.WithLaunchGrace(cfg.LaunchGrace))
	}

	if cfg.CleanupInterval > 0 {
		opts = append(opts, shellherd.WithCleanupInterval(cfg.CleanupInterval))
	}

	if cfg.DisposeGrace > 0 {
		opts = append(opts, shellherd.WithDisposeGrace(cfg.DisposeGrace))
	}

	if cfg.BootstrapTimeout > 0 {
		opts = append(opts, shellherd.WithBootstrapTimeout(cfg.BootstrapTimeout))
	}

	return opts, nil
}
