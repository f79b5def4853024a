// crywatch-tail prints every label change from a running crywatch
// dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/crywatch/internal/log"
	"github.com/teslashibe/crywatch/pkg/monitor"
	"github.com/teslashibe/crywatch/pkg/statusclient"
	"github.com/teslashibe/crywatch/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard address")
	all := flag.Bool("all", false, "Print every update, not just label changes")
	flag.Parse()
	log.Init("warn")

	url, err := statusclient.URL(*addr)
	if err != nil {
		log.Error("bad address", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := statusclient.Dial(ctx, url, log.L())
	if err != nil {
		log.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	last := monitor.Label(-1)
	err = c.Run(ctx, func(st web.Status) {
		if !*all && st.Label == last {
			return
		}
		last = st.Label
		state := "stopped"
		if st.Streaming {
			state = "streaming"
		}
		fmt.Printf("%s  %-16s %s\n", time.Now().Format("15:04:05"), st.Display, state)
	})
	if err != nil {
		log.Error("stream ended", "error", err)
		os.Exit(1)
	}
}
