package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nczempin/sockfetch/protocol"
	"github.com/nczempin/sockfetch/transport"
)

const (
	DefaultHost       = "www.microsoft.com"
	DefaultPort       = 80
	DefaultBufferSize = 4096
	MaxBufferSize     = 1 << 20
)

// Config describes one fetch: where to connect and how to render the response.
type Config struct {
	// Host is the target host name. It is both the dial address and the Host header.
	Host string `yaml:"host"`

	// Port is the target TCP port.
	Port uint16 `yaml:"port"`

	// Transport selects the socket implementation.
	Transport transport.Kind `yaml:"transport"`

	// SocketPath is the Unix socket to dial when Transport is "unix".
	SocketPath string `yaml:"socket_path,omitempty"`

	// Timeout bounds the dial and each read or write. Zero waits indefinitely.
	Timeout Duration `yaml:"timeout,omitempty"`

	// BufferSize is the capacity of the receive buffer.
	BufferSize int `yaml:"buffer_size"`

	// Encoding is the decoding policy applied to every received chunk.
	Encoding protocol.Encoding `yaml:"encoding"`
}

// Duration is a time.Duration that reads from YAML strings such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("timeout must be a duration string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		Transport:  transport.KindTCP,
		BufferSize: DefaultBufferSize,
		Encoding:   protocol.EncodingASCII,
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}

	enc, err := protocol.ParseEncoding(string(cfg.Encoding))
	if err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Encoding = enc

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a fetch.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	for i := 0; i < len(c.Host); i++ {
		if b := c.Host[i]; b <= ' ' || b >= 0x7f {
			return fmt.Errorf("host %q must be printable ASCII without spaces", c.Host)
		}
	}

	if c.Port == 0 {
		return errors.New("port must be between 1 and 65535")
	}

	if c.BufferSize < 1 || c.BufferSize > MaxBufferSize {
		return fmt.Errorf("buffer_size %d out of range 1..%d", c.BufferSize, MaxBufferSize)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout %s must not be negative", time.Duration(c.Timeout))
	}

	switch c.Transport {
	case transport.KindTCP:
	case transport.KindUnix:
		if c.SocketPath == "" {
			return errors.New("socket_path is required for the unix transport")
		}
	case transport.KindUring, transport.KindUringV2:
		if c.Timeout != 0 {
			return fmt.Errorf("timeout is not supported by the %s transport", c.Transport)
		}
	default:
		return fmt.Errorf("unknown transport %q: must be one of %v", c.Transport, transport.Kinds)
	}

	if _, err := protocol.NewDecoder(c.Encoding); err != nil {
		return err
	}
	return nil
}

// DialTarget returns the address handed to Transport.Connect.
func (c Config) DialTarget() string {
	if c.Transport == transport.KindUnix {
		return c.SocketPath
	}
	return c.Host
}
