// classifier-stub serves a fake crying detector for local runs:
//
//	go run ./cmd/classifier-stub -mode alternate &
//	DOMEN=http://localhost:8000/ go run ./cmd/crywatch -grant -autostart
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/crywatch/internal/log"
	"github.com/teslashibe/crywatch/pkg/classifier/stub"
)

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	mode := flag.String("mode", "alternate", "Verdicts: crying, calm, alternate, random, fail")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	decide, err := decider(*mode)
	if err != nil {
		log.Error("bad mode", "error", err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           stub.New(decide, log.L()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("classifier stub listening", "addr", *addr, "mode", *mode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("stub stopped", "error", err)
		os.Exit(1)
	}
}

func decider(mode string) (stub.Decider, error) {
	switch mode {
	case "crying":
		return stub.Fixed(true), nil
	case "calm":
		return stub.Fixed(false), nil
	case "alternate":
		return stub.Sequence(false, true), nil
	case "random":
		return func([]byte) (bool, error) { return rand.IntN(2) == 1, nil }, nil
	case "fail":
		return stub.Sequence(), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}
