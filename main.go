package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/monkeytag/relay/internal/config"
	"github.com/monkeytag/relay/internal/handlers"
)

var flags Flags

type Flags struct {
	verbose bool
}

func main() {
	// Parse command line flags
	for _, arg := range os.Args[1:] {
		if arg == "-v" {
			flags.verbose = true
		}
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if flags.verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Debug("Verbose mode enabled")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	rs := handlers.NewRelayServer(cfg, logger)

	server := &http.Server{
		Handler:      rs.Routes(),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}

	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	// Close every live connection, then the listener. In-flight broadcasts
	// are not waited for.
	rs.Registry.CloseAll()
	server.Close()
}
