package sender

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/duplexcast/duplexcast/internal/audio"
	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/fec"
	"github.com/duplexcast/duplexcast/internal/protocol"
	"github.com/duplexcast/duplexcast/internal/telemetry"
	"github.com/duplexcast/duplexcast/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is the capture-host process: it owns the receiver registry,
// sender storage, bitrate controller, audio sender, socket, and
// telemetry, and drives them all from one Run/Shutdown lifecycle.
// It follows the usual process shape: context+cancel+sync.WaitGroup,
// an http.Server for ancillary endpoints, Run() blocks, Shutdown()
// cancels and joins.
type Pipeline struct {
	cfg *Config

	registry *Registry
	storage  *Storage
	mic      *audio.RingBuffer
	audioSnd *audio.Sender
	socket   *transport.Socket
	metrics  *telemetry.Metrics
	status   *telemetry.StatusFeed
	httpSrv  *http.Server

	source     capture.Source
	videoCodec capture.VideoEncoder
	audioCodec capture.AudioEncoder
	microphone capture.AudioDevice

	ownerID int32
	logger  *log.Logger

	mu            sync.Mutex
	lastFrameID   int32
	hasLastFrame  bool
	lastFrameTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline wires every sender-side collaborator together. ownerID
// identifies this sender on the wire.
func NewPipeline(cfg *Config, ownerID int32, source capture.Source, videoCodec capture.VideoEncoder, audioCodec capture.AudioEncoder, microphone capture.AudioDevice, logger *log.Logger) (*Pipeline, error) {
	conn, err := transport.ListenConn(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	return NewPipelineWithConn(cfg, ownerID, source, videoCodec, audioCodec, microphone, logger, conn)
}

// NewPipelineWithConn is NewPipeline for a caller that already has an
// open net.PacketConn, e.g. a test harness substituting an in-process
// lossy/reordering conn for a real UDP socket.
func NewPipelineWithConn(cfg *Config, ownerID int32, source capture.Source, videoCodec capture.VideoEncoder, audioCodec capture.AudioEncoder, microphone capture.AudioDevice, logger *log.Logger, conn net.PacketConn) (*Pipeline, error) {
	socket := transport.NewSocket(conn)

	if cfg.ParityGroupSize > 0 {
		fec.GroupSize = cfg.ParityGroupSize
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	status := telemetry.NewStatusFeed(logger)

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline{
		cfg:        cfg,
		registry:   NewRegistry(),
		storage:    NewStorage(),
		mic:        audio.NewRingBufferWithLatency(cfg.AudioLatencySeconds),
		socket:     socket,
		metrics:    metrics,
		status:     status,
		source:     source,
		videoCodec: videoCodec,
		audioCodec: audioCodec,
		microphone: microphone,
		ownerID:    ownerID,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	p.audioSnd = audio.NewSender(p.mic, audioCodec, logger)
	p.audioSnd.Send = p.sendAudio

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/status", status.ServeHTTP)
		p.httpSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return p, nil
}

// Run starts every pipeline goroutine and blocks until Shutdown cancels
// the pipeline's context.
func (p *Pipeline) Run() error {
	p.wg.Add(5)
	go p.receiveLoop()
	go p.heartbeatLoop()
	go p.captureLoop()
	go p.microphoneLoop()
	go func() {
		defer p.wg.Done()
		p.audioSnd.Run(p.ctx)
	}()

	if p.httpSrv != nil {
		p.logger.Printf("sender: metrics/status listening on %s", p.httpSrv.Addr)
		if err := p.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	<-p.ctx.Done()
	return nil
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

		buf, addr, err := p.socket.Receive()
		if err != nil {
			p.logger.Printf("sender: receive error: %v", err)
			continue
		}
		if buf == nil {
			continue
		}
		p.handlePacket(buf, addr)
	}
}

func (p *Pipeline) handlePacket(buf []byte, addr net.Addr) {
	hdr, err := protocol.ReadHeader(buf)
	if err != nil {
		return
	}
	// Any packet from a known receiver counts as hearing from it.
	p.registry.Touch(hdr.OwnerID)

	switch protocol.ReceiverKind(hdr.Kind) {
	case protocol.KindConnect:
		conn, err := protocol.DecodeConnect(buf)
		if err != nil {
			return
		}
		p.registry.Connect(conn.OwnerID, addr, conn.VideoRequested, conn.AudioRequested)
		p.metrics.PacketsReceived.WithLabelValues("connect").Inc()
		p.send(protocol.EncodeConfirm(protocol.Confirm{OwnerID: p.ownerID, ReceiverID: conn.OwnerID}), addr)

	case protocol.KindHeartbeatR:
		p.metrics.PacketsReceived.WithLabelValues("heartbeat").Inc()

	case protocol.KindReport:
		rep, err := protocol.DecodeReport(buf)
		if err != nil {
			return
		}
		p.registry.ReportFrame(rep.OwnerID, rep.FrameID)
		p.metrics.PacketsReceived.WithLabelValues("report").Inc()

	case protocol.KindRequest:
		req, err := protocol.DecodeRequest(buf)
		if err != nil {
			return
		}
		p.metrics.PacketsReceived.WithLabelValues("request").Inc()
		p.resolveRequest(req, addr)
	}
}

func (p *Pipeline) resolveRequest(req protocol.Request, addr net.Addr) {
	video, parity, ok := p.storage.Resolve(req.FrameID, req.AllPackets, req.VideoPacketIndices, req.ParityPacketIndices)
	if !ok {
		return
	}
	for _, b := range video {
		p.send(b, addr)
	}
	for _, b := range parity {
		p.send(b, addr)
	}
	if len(video) > 0 || len(parity) > 0 {
		p.metrics.RetransmitsServed.Inc()
	}
}

func (p *Pipeline) heartbeatLoop() {
	defer p.wg.Done()
	interval := HeartbeatInterval
	if p.cfg.HeartbeatIntervalMs > 0 {
		interval = time.Duration(p.cfg.HeartbeatIntervalMs) * time.Millisecond
	}
	timeout := HeartbeatTimeout
	if p.cfg.HeartbeatTimeoutMs > 0 {
		timeout = time.Duration(p.cfg.HeartbeatTimeoutMs) * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			for _, r := range p.registry.Snapshot() {
				p.send(protocol.EncodeHeartbeat(p.ownerID, uint8(protocol.KindHeartbeat)), r.Endpoint)
			}
			for _, e := range p.registry.EvictTimedOut(time.Now(), timeout) {
				p.logger.Printf("sender: receiver %d timed out (%s)", e.ReceiverID, e.CorrelationID)
			}
			if minID, ok := p.registry.MinReportedFrameID(); ok {
				p.storage.Cleanup(minID)
			}
			p.status.Broadcast(p.snapshot())
		}
	}
}

func (p *Pipeline) snapshot() telemetry.Snapshot {
	entries := p.registry.Snapshot()
	curFrameID := p.currentFrameID()
	hasFrame := p.hasProducedFrame()

	rows := make([]telemetry.ReceiverStatus, len(entries))
	for i, e := range entries {
		// Loss percentage without an RTT measurement: the gap between
		// the highest frame this sender has produced and the receiver's
		// last report, as a fraction of every frame this sender has
		// produced.
		lossPct := 0.0
		if hasFrame && curFrameID > 0 {
			behind := curFrameID - e.LastReportedFrameID
			if behind > 0 {
				lossPct = 100 * float64(behind) / float64(curFrameID+1)
			}
		}
		rows[i] = telemetry.ReceiverStatus{
			ReceiverID:        e.ReceiverID,
			Endpoint:          e.Endpoint.String(),
			LastReportedFrame: e.LastReportedFrameID,
			VideoRequested:    e.VideoRequested,
			AudioRequested:    e.AudioRequested,
			LossPercent:       lossPct,
		}
		p.metrics.ReceiverLossPct.WithLabelValues(strconv.Itoa(int(e.ReceiverID))).Set(lossPct)
	}
	return telemetry.Snapshot{Receivers: rows}
}

func (p *Pipeline) captureLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		videoReceivers := p.registry.VideoReceivers()
		decision := Gate(videoReceivers, p.currentFrameID(), p.deltaSeconds())
		p.metrics.BitrateReady.Set(boolFloat(decision.IsReady))
		p.metrics.BitrateKeyframe.Set(boolFloat(decision.Keyframe))
		if !decision.IsReady {
			time.Sleep(time.Second / CaptureFPS)
			continue
		}

		ctx, cancel := context.WithTimeout(p.ctx, capture.FrameDeadline)
		frame, err := p.source.NextVideoFrame(ctx)
		cancel()
		if err != nil {
			continue
		}

		p.emitFrame(frame, decision.Keyframe, videoReceivers)
	}
}

func (p *Pipeline) emitFrame(frame capture.VideoFrame, keyframe bool, receivers []ReceiverEntry) {
	color, err := p.videoCodec.EncodeColor(frame.ColorRaw)
	if err != nil {
		p.logger.Printf("sender: color encode failed: %v", err)
		return
	}
	depth, err := p.videoCodec.EncodeDepth(frame.DepthRaw, keyframe)
	if err != nil {
		p.logger.Printf("sender: depth encode failed: %v", err)
		return
	}

	msg := protocol.VideoMessage{
		FrameTimeStampMs: frame.TimestampMs,
		Keyframe:         keyframe,
		Width:            frame.Width,
		Height:           frame.Height,
		Intrinsics:       frame.Intrinsics,
		ColorBytes:       color,
		DepthBytes:       depth,
		Floor:            frame.Floor,
	}

	frameID := p.nextFrameID()
	body := protocol.EncodeVideoMessage(msg)
	videoPackets := protocol.Split(p.ownerID, frameID, body)
	parityPackets, err := protocol.BuildParity(p.ownerID, frameID, videoPackets)
	if err != nil {
		p.logger.Printf("sender: parity build failed: %v", err)
		return
	}

	videoBytes := make([][]byte, len(videoPackets))
	for i, pkt := range videoPackets {
		videoBytes[i] = protocol.EncodeVideo(pkt)
	}
	parityBytes := make([][]byte, len(parityPackets))
	for i, pkt := range parityPackets {
		parityBytes[i] = protocol.EncodeParity(pkt)
	}
	p.storage.Add(frameID, videoBytes, parityBytes)

	for _, r := range receivers {
		for _, b := range videoBytes {
			p.send(b, r.Endpoint)
		}
		for _, b := range parityBytes {
			p.send(b, r.Endpoint)
		}
	}
	p.metrics.PacketsSent.WithLabelValues("video").Add(float64(len(videoBytes)))
	p.metrics.PacketsSent.WithLabelValues("parity").Add(float64(len(parityBytes)))
}

func (p *Pipeline) microphoneLoop() {
	defer p.wg.Done()
	if p.microphone == nil {
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
			n, err := p.microphone.ReadFrame(frame)
			if err != nil {
				continue
			}
			p.mic.Write(frame[:n])
		}
	}
}

func (p *Pipeline) sendAudio(frameID int32, opus []byte) {
	body := protocol.EncodeAudio(protocol.Audio{OwnerID: p.ownerID, FrameID: frameID, Payload: opus})
	for _, r := range p.registry.AudioReceivers() {
		p.send(body, r.Endpoint)
	}
	p.metrics.PacketsSent.WithLabelValues("audio").Inc()
}

func (p *Pipeline) send(b []byte, addr net.Addr) {
	if err := p.socket.Send(b, addr); err != nil {
		p.registry.EvictEndpoint(addr)
	}
}

func (p *Pipeline) nextFrameID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.lastFrameID
	if p.hasLastFrame {
		id = p.lastFrameID + 1
	}
	p.lastFrameID = id
	p.hasLastFrame = true
	p.lastFrameTime = time.Now()
	return id
}

func (p *Pipeline) currentFrameID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrameID
}

func (p *Pipeline) hasProducedFrame() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasLastFrame
}

func (p *Pipeline) deltaSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasLastFrame {
		return 1
	}
	return time.Since(p.lastFrameTime).Seconds()
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func int32Str(v int32) string {
	const digits = "0123456789"
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
