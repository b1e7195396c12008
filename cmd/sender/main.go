package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/sender"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON configuration file")
	listenAddr := flag.String("listen", "", "UDP listen address (overrides config)")
	metricsAddr := flag.String("metrics", "", "Metrics/status HTTP listen address (overrides config)")
	ownerID := flag.Int("owner-id", 1, "This sender's wire owner_id")
	width := flag.Int("width", 320, "Synthetic capture frame width")
	height := flag.Int("height", 240, "Synthetic capture frame height")
	flag.Parse()

	cfg, err := sender.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("sender: failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger := log.New(os.Stdout, "[sender] ", log.LstdFlags)

	source := capture.NewSyntheticSource(int32(*width), int32(*height))
	videoCodec := capture.PassthroughVideoCodec{}
	audioCodec := capture.PassthroughAudioCodec{}
	microphone := &capture.SyntheticMicrophone{}

	p, err := sender.NewPipeline(cfg, int32(*ownerID), source, videoCodec, audioCodec, microphone, logger)
	if err != nil {
		log.Fatalf("sender: failed to build pipeline: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("shutting down...")
		p.Shutdown()
	}()

	logger.Printf("listening on %s", cfg.ListenAddr)
	if err := p.Run(); err != nil {
		log.Fatalf("sender: run error: %v", err)
	}
}
