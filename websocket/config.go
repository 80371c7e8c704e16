package websocket

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relaywire/wsock/wsagg"
	"github.com/relaywire/wsock/wscompress"
)

// AggregatorLimitsConfig is the YAML-serializable form of wsagg.Limits.
type AggregatorLimitsConfig struct {
	MaxFrameCount           int   `yaml:"max_frame_count,omitempty"`
	MaxMessageBytes         int64 `yaml:"max_message_bytes,omitempty"`
	MinNonFinalFragmentSize int   `yaml:"min_non_final_fragment_size,omitempty"`
}

func (c AggregatorLimitsConfig) limits() wsagg.Limits {
	return wsagg.Limits{
		MaxFrameCount:           c.MaxFrameCount,
		MaxMessageBytes:         c.MaxMessageBytes,
		MinNonFinalFragmentSize: c.MinNonFinalFragmentSize,
	}
}

// DecompressionLimitConfig is the YAML-serializable form of
// wscompress.DecompressionLimit. Kind accepts "none", "absolute", or "ratio".
type DecompressionLimitConfig struct {
	Kind     string  `yaml:"kind,omitempty"`
	MaxBytes int64   `yaml:"max_bytes,omitempty"`
	Ratio    float64 `yaml:"ratio,omitempty"`
}

func (c DecompressionLimitConfig) limit() (wscompress.DecompressionLimit, error) {
	var kind wscompress.LimitKind
	switch c.Kind {
	case "", "none":
		kind = wscompress.LimitNone
	case "absolute":
		kind = wscompress.LimitAbsolute
	case "ratio":
		kind = wscompress.LimitRatio
	default:
		return wscompress.DecompressionLimit{}, fmt.Errorf("websocket: unknown decompression limit kind %q", c.Kind)
	}
	return wscompress.DecompressionLimit{Kind: kind, MaxBytes: c.MaxBytes, Ratio: c.Ratio}, nil
}

// UpgraderConfig is a YAML-serializable subset of Upgrader's tunables, for
// services that configure the engine from a file rather than struct
// literals. CheckOrigin, Error, and ErrorLog are not representable in YAML
// and must be set on the returned Upgrader by the caller when needed.
type UpgraderConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size,omitempty"`
	WriteBufferSize int `yaml:"write_buffer_size,omitempty"`

	Subprotocols []string `yaml:"subprotocols,omitempty"`

	EnableCompression  bool                     `yaml:"enable_compression,omitempty"`
	CompressionLevel   int                      `yaml:"compression_level,omitempty"`
	DecompressionLimit DecompressionLimitConfig `yaml:"decompression_limit,omitempty"`

	AggregatorLimits AggregatorLimitsConfig `yaml:"aggregator_limits,omitempty"`

	PingInterval time.Duration `yaml:"ping_interval,omitempty"`
}

// LoadUpgraderConfig reads and parses an UpgraderConfig from a YAML file.
func LoadUpgraderConfig(path string) (*UpgraderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("websocket: read config: %w", err)
	}

	var cfg UpgraderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("websocket: parse config: %w", err)
	}
	return &cfg, nil
}

// Upgrader builds an *Upgrader from the config. The caller is still
// responsible for CheckOrigin, Error, and ErrorLog.
func (c *UpgraderConfig) Upgrader() (*Upgrader, error) {
	limit, err := c.DecompressionLimit.limit()
	if err != nil {
		return nil, err
	}

	return &Upgrader{
		ReadBufferSize:     c.ReadBufferSize,
		WriteBufferSize:    c.WriteBufferSize,
		Subprotocols:       c.Subprotocols,
		EnableCompression:  c.EnableCompression,
		CompressionLevel:   c.CompressionLevel,
		DecompressionLimit: limit,
		AggregatorLimits:   c.AggregatorLimits.limits(),
		PingInterval:       c.PingInterval,
	}, nil
}
