package sender

import (
	"encoding/json"
	"os"
)

// Config holds every deployment-tunable knob of a sender process,
// using the same JSON-tag-per-field pattern as the rest of this repo's
// config structs.
type Config struct {
	// ListenAddr is the UDP address the sender binds, e.g. ":3773".
	ListenAddr string `json:"listen_addr"`

	// HeartbeatIntervalMs overrides HeartbeatInterval when non-zero.
	HeartbeatIntervalMs int `json:"heartbeat_interval_ms,omitempty"`
	// HeartbeatTimeoutMs overrides HeartbeatTimeout when non-zero.
	HeartbeatTimeoutMs int `json:"heartbeat_timeout_ms,omitempty"`

	// ParityGroupSize overrides fec.GroupSize when non-zero. Both ends
	// of a link must be configured with the same value.
	ParityGroupSize int `json:"parity_group_size,omitempty"`
	// AudioLatencySeconds overrides the microphone ring buffer's sizing
	// (protocol.LatencySeconds) when non-zero.
	AudioLatencySeconds float64 `json:"audio_latency_seconds,omitempty"`

	// MetricsAddr is the HTTP address serving /metrics and the status
	// feed, e.g. ":9100". Empty disables both.
	MetricsAddr string `json:"metrics_addr"`
}

// DefaultConfig returns a sender configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  ":3773",
		MetricsAddr: ":9100",
	}
}

// LoadConfig reads a JSON config file at path, overlaying it onto
// DefaultConfig. A missing file is not an error: the defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
