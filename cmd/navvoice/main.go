package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harunnryd/navvoice/pkg/adapters/stt"
	"github.com/harunnryd/navvoice/pkg/logging"
	"github.com/harunnryd/navvoice/pkg/navvoice"
	"github.com/harunnryd/navvoice/pkg/providers/mic"
	"github.com/harunnryd/navvoice/pkg/redact"
	"github.com/harunnryd/navvoice/pkg/runner"
	"github.com/harunnryd/navvoice/pkg/xfyun"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	configPath string
	envFile    string
	device     int
	logLevel   string
	logFormat  string
	noBanner   bool

	cfg    navvoice.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "navvoice",
		Short:         "Streaming speech recognition front end for voice navigation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "KEY=VALUE file loaded before reading the environment")
	flags.IntVar(&opts.device, "device", -1, "portaudio input device index (-1 for the default device)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "override log_format (text, json)")
	flags.BoolVar(&opts.noBanner, "no-banner", false, "do not print the startup banner")

	root.AddCommand(
		recognizeCmd(opts, navvoice.ModeListen, "listen", "Listen for a navigation request until a keyword, silence or the deadline ends it"),
		recognizeCmd(opts, navvoice.ModeConfirm, "confirm", "Listen for a short accept or decline answer"),
		recognizeCmd(opts, navvoice.ModeOnce, "once", "Capture one utterance without keyword spotting"),
		replayCmd(opts),
		checkCmd(opts),
		signURLCmd(opts),
		devicesCmd(),
	)
	return root
}

func (o *cliOptions) load(cmd *cobra.Command, stderr io.Writer) error {
	if err := navvoice.LoadEnvFiles(o.envFile); err != nil {
		return err
	}
	cfg, err := navvoice.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if cmd.Flags().Changed("device") {
		if cfg.Audio.Settings == nil {
			cfg.Audio.Settings = map[string]any{}
		}
		cfg.Audio.Settings["device_index"] = o.device
	}
	o.cfg = cfg
	o.logger = logging.InitLogger(logging.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: stderr,
	})
	return nil
}

func (o *cliOptions) banner(cmd *cobra.Command) {
	if !o.noBanner {
		runner.PrintBanner(cmd.OutOrStdout(), false)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func recognizeCmd(opts *cliOptions, mode navvoice.Mode, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecognize(cmd, opts, mode)
		},
	}
}

func replayCmd(opts *cliOptions) *cobra.Command {
	var pace time.Duration
	var mode string
	cmd := &cobra.Command{
		Use:   "replay <file.wav>",
		Short: "Stream a 16 kHz mono WAV file instead of the microphone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg.Audio = navvoice.AudioConfig{
				Provider: "wav",
				Settings: map[string]any{"path": args[0], "pace": pace.String()},
			}
			return runRecognize(cmd, opts, navvoice.Mode(mode))
		},
	}
	cmd.Flags().DurationVar(&pace, "pace", 40*time.Millisecond, "delay between frames (0 streams as fast as possible)")
	cmd.Flags().StringVar(&mode, "mode", string(navvoice.ModeListen), "recognition mode: listen, confirm or once")
	return cmd
}

func runRecognize(cmd *cobra.Command, opts *cliOptions, mode navvoice.Mode) error {
	opts.banner(cmd)
	svc, err := navvoice.NewService(opts.cfg, navvoice.Options{Logger: opts.logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			opts.logger.Warn("service_close_failed", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintln(cmd.ErrOrStderr(), "listening, please speak...")
	out := svc.Recognize(ctx, mode)
	printOutcome(cmd.OutOrStdout(), out)
	if out.Reason.IsError() {
		return fmt.Errorf("recognition failed: %s", out.Reason)
	}
	return nil
}

func printOutcome(w io.Writer, out stt.Outcome) {
	fmt.Fprintf(w, "reason:  %s\n", out.Reason)
	if out.Keyword != "" {
		fmt.Fprintf(w, "keyword: %s\n", out.Keyword)
	}
	fmt.Fprintf(w, "text:    %s\n", out.Text)
	fmt.Fprintf(w, "elapsed: %s\n", out.Elapsed.Round(time.Millisecond))
	if out.Err != nil {
		fmt.Fprintf(w, "error:   %v\n", out.Err)
	}
}

func checkCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate credentials and check that the service host is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := navvoice.NewService(opts.cfg, navvoice.Options{Logger: opts.logger})
			if err != nil {
				return err
			}
			defer svc.Close()
			ctx, stop := signalContext()
			defer stop()
			if err := svc.Check(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "check failed: %v\n", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s reachable, credentials present\n", opts.cfg.XFYun.Host)
			return nil
		},
	}
}

func signURLCmd(opts *cliOptions) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "sign-url",
		Short: "Print a signed connection URL for the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer := xfyun.NewSigner()
			signer.Host = opts.cfg.XFYun.Host
			raw, err := signer.BuildURL(opts.cfg.XFYun.Credentials(), time.Now())
			if err != nil {
				return err
			}
			if !show {
				raw = redact.URL(raw)
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the authorization parameter instead of redacting it")
	return cmd
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices usable with --device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := mic.ListInputDevices()
			if err != nil {
				return err
			}
			for _, d := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", d.Index, strings.TrimSpace(d.Name))
			}
			return nil
		},
	}
}
