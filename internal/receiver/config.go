package receiver

import (
	"encoding/json"
	"os"
)

// Config holds every deployment-tunable knob of a receiver process.
type Config struct {
	// SenderAddr is the sender's well-known UDP endpoint, "host:3773".
	SenderAddr string `json:"sender_addr"`
	// ListenAddr is the receiver's own UDP bind address; ":0" picks an
	// ephemeral port.
	ListenAddr string `json:"listen_addr"`

	// ReceiverID is this receiver's wire identity. Required: the
	// protocol has no handshake-assigned id.
	ReceiverID int32 `json:"receiver_id"`

	VideoRequested bool `json:"video_requested"`
	AudioRequested bool `json:"audio_requested"`

	// AudioAmplifier overrides audio.Amplifier when non-zero. Treated
	// as configuration rather than a protocol invariant: it only scales
	// the speaker output this receiver produces.
	AudioAmplifier float64 `json:"audio_amplifier,omitempty"`

	// ParityGroupSize overrides fec.GroupSize when non-zero. Must match
	// the sender's own override or reconstruction will desync.
	ParityGroupSize int `json:"parity_group_size,omitempty"`
	// AudioLatencySeconds overrides the speaker ring buffer's sizing
	// (protocol.LatencySeconds) when non-zero.
	AudioLatencySeconds float64 `json:"audio_latency_seconds,omitempty"`

	// HeartbeatTimeoutMs overrides the receiver's sender-silence timeout
	// (SenderTimeout) when non-zero.
	HeartbeatTimeoutMs int `json:"heartbeat_timeout_ms,omitempty"`

	// MetricsAddr is the HTTP address serving /metrics. Empty disables
	// it.
	MetricsAddr string `json:"metrics_addr"`
}

// DefaultConfig returns a receiver configuration with sensible
// defaults; SenderAddr and ReceiverID still need to be supplied.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":0",
		VideoRequested: true,
		AudioRequested: true,
		MetricsAddr:    ":9101",
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
