package present

import "log"

// LoggingPresentation implements Presentation by logging a line per
// submitted frame, standing in for real texture upload / on-screen
// rendering (out of scope by name).
type LoggingPresentation struct {
	logger *log.Logger
}

// NewLoggingPresentation returns a Presentation that logs through
// logger.
func NewLoggingPresentation(logger *log.Logger) *LoggingPresentation {
	return &LoggingPresentation{logger: logger}
}

func (p *LoggingPresentation) Submit(color, depth []byte, timestampMs float32, keyframe bool) error {
	p.logger.Printf("present: frame t=%.1fms keyframe=%v color=%dB depth=%dB", timestampMs, keyframe, len(color), len(depth))
	return nil
}
