package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nczempin/sockfetch/config"
	fetcherrors "github.com/nczempin/sockfetch/errors"
	"github.com/nczempin/sockfetch/protocol"
	"github.com/nczempin/sockfetch/transport"
)

// DefaultBufferSize is the receive buffer capacity used when Options leaves it unset.
const DefaultBufferSize = 4096

// Tracer produces the diagnostic trace written once at the first response activity.
type Tracer func() []byte

// StackTracer returns the calling goroutine's stack.
func StackTracer() []byte {
	return debug.Stack()
}

// Options configures a Fetcher. Zero fields take defaults.
type Options struct {
	// Decoder renders each received chunk. Defaults to the ascii policy.
	Decoder protocol.Decoder

	// Tracer defaults to StackTracer.
	Tracer Tracer

	// BufferSize defaults to DefaultBufferSize.
	BufferSize int

	// DialAddr, when set, is passed to Transport.Connect instead of the host.
	// The Host header always carries the host given to Run.
	DialAddr string

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Result summarizes a completed run.
type Result struct {
	RunID         string
	BytesSent     int
	BytesReceived int
	Chunks        int
	Elapsed       time.Duration
}

// Fetcher performs exactly one GET request/response cycle over a Transport
// and forwards the raw response to a sink as text.
type Fetcher struct {
	transport transport.Transport
	sink      io.Writer
	decoder   protocol.Decoder
	tracer    Tracer
	bufSize   int
	dialAddr  string
	logger    zerolog.Logger

	result  Result
	sinkErr error
}

// NewFetcher creates a Fetcher that owns t for the duration of one run.
func NewFetcher(t transport.Transport, sink io.Writer, opts Options) *Fetcher {
	f := &Fetcher{
		transport: t,
		sink:      sink,
		decoder:   opts.Decoder,
		tracer:    opts.Tracer,
		bufSize:   opts.BufferSize,
		dialAddr:  opts.DialAddr,
	}

	if f.decoder == nil {
		f.decoder, _ = protocol.NewDecoder(protocol.EncodingASCII)
	}
	if f.tracer == nil {
		f.tracer = StackTracer
	}
	if f.bufSize <= 0 {
		f.bufSize = DefaultBufferSize
	}

	f.result.RunID = uuid.Must(uuid.NewV7()).String()

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	f.logger = logger.With().Str("run_id", f.result.RunID).Logger()

	return f
}

// RunID identifies this Fetcher's run in logs and results.
func (f *Fetcher) RunID() string {
	return f.result.RunID
}

// Connect establishes the stream connection. Failures are ConnectionErrors.
func (f *Fetcher) Connect(ctx context.Context, host string, port uint16) error {
	f.logger.Info().Str("addr", host).Uint16("port", port).Msg("connecting")

	if err := f.transport.Connect(ctx, host, port); err != nil {
		return fetcherrors.NewFetchError(fetcherrors.ConnectionError, err)
	}

	f.logger.Debug().Msg("connected")
	return nil
}

// SendRequest writes the GET request for host in full, looping on short
// writes. Failures are SendErrors.
func (f *Fetcher) SendRequest(host string) error {
	req := protocol.BuildRequest(host)

	off := 0
	for off < len(req) {
		n, err := f.transport.Write(req[off:])
		off += n
		f.result.BytesSent += n
		if err != nil {
			return fetcherrors.NewFetchError(fetcherrors.SendError, err)
		}
		if n == 0 {
			return fetcherrors.NewFetchError(fetcherrors.SendError,
				fetcherrors.NewTransportError(fetcherrors.ConnectionClosed,
					fmt.Errorf("wrote 0 of %d remaining bytes", len(req)-off)))
		}
	}

	f.logger.Debug().Int("bytes", off).Msg("request sent")
	return nil
}

// ReceiveLoop reads until the peer closes the stream. The diagnostic trace is
// written to the sink once, when the first read returns. Each non-empty read
// is decoded and written on its own line. Read failures are ReceiveErrors.
func (f *Fetcher) ReceiveLoop() error {
	buf := make([]byte, f.bufSize)
	r := &onFirstReturn{r: f.transport, hook: f.emitTrace}

	for {
		n, err := r.Read(buf)
		if f.sinkErr != nil {
			if err != nil {
				return errors.Join(fetcherrors.NewFetchError(fetcherrors.ReceiveError, err), f.sinkErr)
			}
			return f.sinkErr
		}

		if n > 0 {
			f.result.BytesReceived += n
			f.result.Chunks++
			f.logger.Debug().Int("bytes", n).Msg("chunk received")

			if err := f.writeLine(f.decoder.Decode(buf[:n])); err != nil {
				return err
			}
		}

		if err != nil {
			return fetcherrors.NewFetchError(fetcherrors.ReceiveError, err)
		}
		if n == 0 {
			f.logger.Debug().Msg("peer closed connection")
			return nil
		}
	}
}

// Run connects to host:port, sends the request, streams the response and
// closes the transport. The transport is closed exactly once on every path.
func (f *Fetcher) Run(ctx context.Context, host string, port uint16) (Result, error) {
	start := time.Now()
	defer f.release()

	dial := host
	if f.dialAddr != "" {
		dial = f.dialAddr
	}

	err := f.Connect(ctx, dial, port)
	if err == nil {
		err = f.SendRequest(host)
	}
	if err == nil {
		err = f.ReceiveLoop()
	}

	f.result.Elapsed = time.Since(start)
	if err != nil {
		event := f.logger.Error().Err(err)
		if stage, ok := fetcherrors.StageOf(err); ok {
			event = event.Str("stage", stage.String())
		}
		event.Msg("fetch failed")
		return f.result, err
	}

	f.logger.Info().
		Int("bytes_sent", f.result.BytesSent).
		Int("bytes_received", f.result.BytesReceived).
		Int("chunks", f.result.Chunks).
		Dur("elapsed", f.result.Elapsed).
		Msg("fetch complete")
	return f.result, nil
}

func (f *Fetcher) release() {
	if err := f.transport.Close(); err != nil {
		f.logger.Warn().Err(err).Msg("failed to close connection")
	}
}

func (f *Fetcher) emitTrace() {
	trace := f.tracer()
	if len(trace) == 0 || trace[len(trace)-1] != '\n' {
		trace = append(trace, '\n')
	}
	trace = append(trace, '\n')

	if _, err := f.sink.Write(trace); err != nil {
		f.sinkErr = fmt.Errorf("write trace: %w", err)
	}
}

func (f *Fetcher) writeLine(text string) error {
	if _, err := io.WriteString(f.sink, text+"\n"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// Fetch performs one run described by cfg, writing the response to sink.
// Every call builds its own transport and Fetcher.
func Fetch(ctx context.Context, cfg config.Config, sink io.Writer, logger zerolog.Logger) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	decoder, err := protocol.NewDecoder(cfg.Encoding)
	if err != nil {
		return Result{}, err
	}

	t, err := transport.New(cfg.Transport, transport.Options{Timeout: time.Duration(cfg.Timeout)})
	if err != nil {
		return Result{}, fetcherrors.NewFetchError(fetcherrors.ConnectionError, err)
	}

	f := NewFetcher(t, sink, Options{
		Decoder:    decoder,
		BufferSize: cfg.BufferSize,
		DialAddr:   cfg.DialTarget(),
		Logger:     &logger,
	})
	return f.Run(ctx, cfg.Host, cfg.Port)
}
