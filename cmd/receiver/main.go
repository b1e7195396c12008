package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/present"
	"github.com/duplexcast/duplexcast/internal/receiver"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON configuration file")
	senderAddr := flag.String("sender", "", "Sender's UDP address, host:3773 (overrides config)")
	listenAddr := flag.String("listen", "", "UDP listen address (overrides config)")
	metricsAddr := flag.String("metrics", "", "Metrics HTTP listen address (overrides config)")
	receiverID := flag.Int("receiver-id", 0, "This receiver's wire owner_id")
	flag.Parse()

	cfg, err := receiver.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("receiver: failed to load config: %v", err)
	}
	if *senderAddr != "" {
		cfg.SenderAddr = *senderAddr
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if cfg.SenderAddr == "" {
		log.Fatalf("receiver: -sender address is required")
	}
	cfg.ReceiverID = int32(*receiverID)

	logger := log.New(os.Stdout, "[receiver] ", log.LstdFlags)

	decoder := capture.PassthroughVideoCodec{}
	audioDecoder := capture.PassthroughAudioCodec{}
	presentation := present.NewLoggingPresentation(logger)
	speaker := capture.DiscardSpeaker{}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	shuttingDown := false

	// On session loss (the sender going silent past its timeout) the
	// receiver returns to this connect prompt and tries again, rather
	// than exiting; an explicit signal is the only way out.
	for !shuttingDown {
		p, err := receiver.NewPipeline(cfg, cfg.ReceiverID, decoder, presentation, audioDecoder, speaker, logger)
		if err != nil {
			log.Fatalf("receiver: failed to build pipeline: %v", err)
		}

		stopSignal := make(chan struct{})
		go func() {
			select {
			case <-sigChan:
				shuttingDown = true
				logger.Println("shutting down...")
				p.Shutdown()
			case <-stopSignal:
			}
		}()

		logger.Printf("connecting to sender %s", cfg.SenderAddr)
		if err := p.Run(); err != nil {
			log.Fatalf("receiver: run error: %v", err)
		}
		close(stopSignal)

		if !shuttingDown && p.TimedOut() {
			logger.Println("session lost, returning to connect prompt")
			continue
		}
		break
	}
}
