package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nczempin/sockfetch/client"
	"github.com/nczempin/sockfetch/config"
	fetcherrors "github.com/nczempin/sockfetch/errors"
	"github.com/nczempin/sockfetch/protocol"
	"github.com/nczempin/sockfetch/transport"
)

// RootOptions holds the flags of the sockfetch command.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string // "json" | "text"

	Port       uint16
	Transport  string
	SocketPath string
	Timeout    time.Duration
	BufferSize int
	Encoding   string
}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"json", "text"}

// NewRootCommand creates the sockfetch command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sockfetch [host]",
		Short: "Fetch / from a host over a raw socket",
		Long: `Send one hand-built HTTP/1.1 GET request over a raw stream socket and print
every response byte as text until the server closes the connection.

A goroutine stack trace is printed once, when the first response read returns.
The response is not parsed; status line, headers and body are printed as received.

Example:
  sockfetch www.microsoft.com
  sockfetch --port 8080 --timeout 5s localhost
  sockfetch --transport unix --socket /var/run/docker.sock localhost`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidLogFormat(opts.LogFormat) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidLogFormats), nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts, args)
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every read")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (json|text)")

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().Uint16VarP(&opts.Port, "port", "p", config.DefaultPort, "target TCP port")
	cmd.Flags().StringVar(&opts.Transport, "transport", string(transport.KindTCP),
		fmt.Sprintf("socket implementation %v", transport.Kinds))
	cmd.Flags().StringVar(&opts.SocketPath, "socket", "", "Unix socket path for --transport unix")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-operation timeout (0 waits indefinitely)")
	cmd.Flags().IntVar(&opts.BufferSize, "buffer-size", config.DefaultBufferSize, "receive buffer size in bytes")
	cmd.Flags().StringVar(&opts.Encoding, "encoding", string(protocol.EncodingASCII),
		fmt.Sprintf("byte decoding policy %v", protocol.Encodings))

	return cmd
}

// resolveConfig layers defaults, the config file, explicitly set flags and
// the host argument, in that order.
func resolveConfig(cmd *cobra.Command, opts *RootOptions, args []string) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.Port
	}
	if flags.Changed("transport") {
		cfg.Transport = transport.Kind(opts.Transport)
	}
	if flags.Changed("socket") {
		cfg.SocketPath = opts.SocketPath
	}
	if flags.Changed("timeout") {
		cfg.Timeout = config.Duration(opts.Timeout)
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = opts.BufferSize
	}
	if flags.Changed("encoding") {
		enc, err := protocol.ParseEncoding(opts.Encoding)
		if err != nil {
			return cfg, err
		}
		cfg.Encoding = enc
	}
	if len(args) == 1 {
		cfg.Host = args[0]
	}

	return cfg, cfg.Validate()
}

func runFetch(cmd *cobra.Command, opts *RootOptions, args []string) error {
	logger := newLogger(cmd.ErrOrStderr(), opts)

	cfg, err := resolveConfig(cmd, opts, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger.Debug().
		Str("host", cfg.Host).
		Uint16("port", cfg.Port).
		Str("transport", string(cfg.Transport)).
		Str("encoding", string(cfg.Encoding)).
		Msg("configuration resolved")

	if _, err := client.Fetch(cmd.Context(), cfg, cmd.OutOrStdout(), logger); err != nil {
		if stage, ok := fetcherrors.StageOf(err); ok {
			return WrapExitError(ExitFailure, fmt.Sprintf("fetch failed at %s stage", stage.String()), err)
		}
		return WrapExitError(ExitFailure, "fetch failed", err)
	}
	return nil
}

// newLogger builds the command's logger. Logs always go to w so that the
// response stream on stdout stays clean.
func newLogger(w io.Writer, opts *RootOptions) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	out := w
	if opts.LogFormat == "text" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// isValidLogFormat checks if the format is one of the allowed values.
func isValidLogFormat(format string) bool {
	for _, f := range ValidLogFormats {
		if f == format {
			return true
		}
	}
	return false
}
