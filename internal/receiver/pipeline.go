package receiver

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/duplexcast/duplexcast/internal/audio"
	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/fec"
	"github.com/duplexcast/duplexcast/internal/present"
	"github.com/duplexcast/duplexcast/internal/protocol"
	"github.com/duplexcast/duplexcast/internal/telemetry"
	"github.com/duplexcast/duplexcast/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HeartbeatInterval is how often the receiver pings its sender.
const HeartbeatInterval = 1 * time.Second

// SenderTimeout is how long a receiver waits without hearing anything
// from its sender before it considers the session lost and ends it.
const SenderTimeout = 5 * time.Second

// LivenessCheckInterval is how often the receiver checks whether its
// sender has gone silent past SenderTimeout.
const LivenessCheckInterval = 1 * time.Second

// Pipeline is the rendering-host process: it owns receiver storage, the
// request planner, the render dispatcher, the audio jitter buffer, the
// socket, and telemetry, driven from one Run/Shutdown lifecycle,
// mirroring sender.Pipeline's shape on the other side of the wire.
//
// A receiver's protocol has exactly one peer, so session loss means
// the sender itself went silent: Run returns once that happens, and
// TimedOut distinguishes that from an explicit Shutdown so the caller
// can decide whether to return to a reconnect prompt.
type Pipeline struct {
	cfg *Config

	storage    *Storage
	dispatcher *Dispatcher
	jitter     *audio.JitterBuffer
	speakerBuf *audio.RingBuffer
	socket     *transport.Socket
	metrics    *telemetry.Metrics
	httpSrv    *http.Server

	speaker capture.AudioDevice

	ownerID       int32
	senderAddr    net.Addr
	senderTimeout time.Duration
	logger        *log.Logger

	mu                   sync.Mutex
	highestSeenFrame     int32
	hasHighestSeen       bool
	lastReconstructed    uint64
	lastDropped          uint64
	lastOverflowed       uint64
	lastSenderPacketTime time.Time
	timedOut             bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline wires every receiver-side collaborator together. ownerID
// is this receiver's wire identity.
func NewPipeline(cfg *Config, ownerID int32, decoder capture.VideoDecoder, presentation present.Presentation, audioDecoder capture.AudioDecoder, speaker capture.AudioDevice, logger *log.Logger) (*Pipeline, error) {
	conn, err := transport.ListenConn(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	senderAddr, err := net.ResolveUDPAddr("udp", cfg.SenderAddr)
	if err != nil {
		return nil, err
	}
	return NewPipelineWithConn(cfg, ownerID, decoder, presentation, audioDecoder, speaker, logger, conn, senderAddr)
}

// NewPipelineWithConn is NewPipeline for a caller that already has an
// open net.PacketConn and has already resolved the sender's address,
// e.g. a test harness substituting an in-process lossy/reordering conn
// for a real UDP socket.
func NewPipelineWithConn(cfg *Config, ownerID int32, decoder capture.VideoDecoder, presentation present.Presentation, audioDecoder capture.AudioDecoder, speaker capture.AudioDevice, logger *log.Logger, conn net.PacketConn, senderAddr net.Addr) (*Pipeline, error) {
	socket := transport.NewSocket(conn)

	if cfg.ParityGroupSize > 0 {
		fec.GroupSize = cfg.ParityGroupSize
	}

	storage := NewStorage()
	dispatcher := NewDispatcher(storage, decoder, presentation, logger)

	speakerBuf := audio.NewRingBufferWithLatency(cfg.AudioLatencySeconds)
	jitter := audio.NewJitterBuffer(audioDecoder, speakerBuf, logger)
	if cfg.AudioAmplifier != 0 {
		jitter.Amplifier = float32(cfg.AudioAmplifier)
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	senderTimeout := SenderTimeout
	if cfg.HeartbeatTimeoutMs > 0 {
		senderTimeout = time.Duration(cfg.HeartbeatTimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline{
		cfg:           cfg,
		storage:       storage,
		dispatcher:    dispatcher,
		jitter:        jitter,
		speakerBuf:    speakerBuf,
		socket:        socket,
		metrics:       metrics,
		speaker:       speaker,
		ownerID:       ownerID,
		senderAddr:    senderAddr,
		senderTimeout: senderTimeout,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
	dispatcher.Report = p.sendReport

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		p.httpSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return p, nil
}

// Run connects to the sender and starts every pipeline goroutine,
// blocking until Shutdown cancels the pipeline's context or the sender
// goes silent for longer than its timeout. Check TimedOut afterward to
// tell the two apart.
func (p *Pipeline) Run() error {
	p.mu.Lock()
	p.lastSenderPacketTime = time.Now()
	p.mu.Unlock()

	p.send(protocol.EncodeConnect(protocol.Connect{
		OwnerID:        p.ownerID,
		VideoRequested: p.cfg.VideoRequested,
		AudioRequested: p.cfg.AudioRequested,
	}))

	p.wg.Add(6)
	go p.receiveLoop()
	go p.heartbeatLoop()
	go p.plannerLoop()
	go p.dispatchLoop()
	go p.speakerLoop()
	go p.livenessLoop()

	var httpErr error
	if p.httpSrv != nil {
		p.logger.Printf("receiver: metrics listening on %s", p.httpSrv.Addr)
		go func() {
			if err := p.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				httpErr = err
			}
		}()
	}

	<-p.ctx.Done()
	if p.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.httpSrv.Shutdown(ctx)
	}
	return httpErr
}

// Shutdown cancels the pipeline and waits for every goroutine to exit.
func (p *Pipeline) Shutdown() {
	p.cancel()
	if p.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.httpSrv.Shutdown(ctx)
	}
	p.socket.Close()
	p.wg.Wait()
}

func (p *Pipeline) receiveLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		buf, _, err := p.socket.Receive()
		if err != nil {
			p.logger.Printf("receiver: receive error: %v", err)
			continue
		}
		if buf == nil {
			continue
		}
		p.handlePacket(buf)
	}
}

func (p *Pipeline) handlePacket(buf []byte) {
	hdr, err := protocol.ReadHeader(buf)
	if err != nil {
		return
	}
	p.touchSenderLiveness()

	switch protocol.SenderKind(hdr.Kind) {
	case protocol.KindConfirm:
		p.metrics.PacketsReceived.WithLabelValues("confirm").Inc()

	case protocol.KindHeartbeat:
		p.metrics.PacketsReceived.WithLabelValues("heartbeat").Inc()

	case protocol.KindVideo:
		pkt, err := protocol.DecodeVideo(buf)
		if err != nil {
			return
		}
		p.storage.AddVideo(pkt)
		p.noteFrameSeen(pkt.FrameID)
		p.metrics.PacketsReceived.WithLabelValues("video").Inc()

	case protocol.KindParity:
		pkt, err := protocol.DecodeParity(buf)
		if err != nil {
			return
		}
		p.storage.AddParity(pkt)
		p.noteFrameSeen(pkt.FrameID)
		p.metrics.PacketsReceived.WithLabelValues("parity").Inc()

	case protocol.KindAudio:
		pkt, err := protocol.DecodeAudio(buf)
		if err != nil {
			return
		}
		p.jitter.Push(pkt)
		p.metrics.PacketsReceived.WithLabelValues("audio").Inc()
	}
}

func (p *Pipeline) noteFrameSeen(frameID int32) {
	p.mu.Lock()
	isNew := !p.hasHighestSeen || frameID > p.highestSeenFrame
	if isNew {
		p.highestSeenFrame = frameID
		p.hasHighestSeen = true
	}
	p.mu.Unlock()
	if isNew {
		p.runPlanner()
	}
}

// touchSenderLiveness records that a packet from the sender just
// arrived, resetting the silence clock livenessLoop watches.
func (p *Pipeline) touchSenderLiveness() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSenderPacketTime = time.Now()
}

// livenessLoop ends the session once the sender has been silent for
// longer than senderTimeout, the receiver-side half of the peer
// timeout: the receiver has exactly one sender, so losing it means the
// session is over rather than one peer among many to evict.
func (p *Pipeline) livenessLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(LivenessCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			silentFor := time.Since(p.lastSenderPacketTime)
			p.mu.Unlock()
			if silentFor > p.senderTimeout {
				p.mu.Lock()
				p.timedOut = true
				p.mu.Unlock()
				p.logger.Printf("receiver: sender silent for %s, ending session", silentFor.Round(time.Second))
				p.cancel()
				return
			}
		}
	}
}

// TimedOut reports whether Run ended because the sender went silent
// past its timeout, as opposed to an explicit Shutdown call. Callers
// that want "on session loss, return to the connect prompt" behavior
// check this after Run returns.
func (p *Pipeline) TimedOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timedOut
}

func (p *Pipeline) heartbeatLoop() {
	defer p.wg.Done()
	interval := HeartbeatInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.send(protocol.EncodeHeartbeat(p.ownerID, uint8(protocol.KindHeartbeatR)))
		}
	}
}

func (p *Pipeline) plannerLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(PlanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runPlanner()
		}
	}
}

func (p *Pipeline) runPlanner() {
	p.mu.Lock()
	highest := p.highestSeenFrame
	hasHighest := p.hasHighestSeen
	p.mu.Unlock()
	if !hasHighest {
		return
	}

	requests := Plan(p.ownerID, p.storage, highest, p.dispatcher.LastRenderedFrameID)
	for _, req := range requests {
		p.send(protocol.EncodeRequest(req))
	}
	p.metrics.PacketsSent.WithLabelValues("request").Add(float64(len(requests)))
}

func (p *Pipeline) dispatchLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(PlanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			before := p.dispatcher.LastRenderedFrameID
			p.dispatcher.Tick()
			if p.dispatcher.LastRenderedFrameID > before {
				// Frames skipped on the way to a keyframe advance
				// LastRenderedFrameID without being rendered.
				advanced := uint64(p.dispatcher.LastRenderedFrameID - before)
				skipped := p.dispatcher.FramesDropped - p.lastDropped
				p.metrics.FramesRendered.Add(float64(advanced - skipped))
			}
			if total := p.storage.Reconstructions(); total > p.lastReconstructed {
				p.metrics.ParityReconstructions.Add(float64(total - p.lastReconstructed))
				p.lastReconstructed = total
			}
			if dropped := p.dispatcher.FramesDropped; dropped > p.lastDropped {
				p.metrics.FramesDropped.Add(float64(dropped - p.lastDropped))
				p.lastDropped = dropped
			}
			p.jitter.Drain()
			if overflowed := p.jitter.Overflows(); overflowed > p.lastOverflowed {
				p.metrics.AudioOverflows.Add(float64(overflowed - p.lastOverflowed))
				p.lastOverflowed = overflowed
			}
		}
	}
}

func (p *Pipeline) speakerLoop() {
	defer p.wg.Done()
	if p.speaker == nil {
		return
	}
	frame := make([]float32, audio.FrameSamples)
	ticker := time.NewTicker(time.Duration(float64(protocol.SamplesPerFrame)/float64(protocol.SampleRate)*1000) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if n := p.speakerBuf.Read(frame); n < len(frame) {
				p.metrics.AudioUnderflows.Inc()
			}
			if _, err := p.speaker.WriteFrame(frame); err != nil {
				p.logger.Printf("receiver: speaker write failed: %v", err)
			}
		}
	}
}

func (p *Pipeline) sendReport(frameID int32) {
	p.send(protocol.EncodeReport(protocol.Report{OwnerID: p.ownerID, FrameID: frameID}))
	p.metrics.PacketsSent.WithLabelValues("report").Inc()
}

func (p *Pipeline) send(b []byte) {
	if err := p.socket.Send(b, p.senderAddr); err != nil {
		p.logger.Printf("receiver: send to sender failed: %v", err)
	}
}
