package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jfreymuth/pamixer"
)

func main() {
	server := flag.String("server", "", "server string")
	rate := flag.Int("rate", pamixer.DefaultPeakRate, "peak samples per second")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := pamixer.NewSession(pamixer.WithServer(*server), pamixer.WithPeakRate(*rate))
	if err := s.Start(ctx); err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	ticker := time.NewTicker(time.Second / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.State().Terminal() {
			fmt.Println(s.Err())
			return
		}
		var b strings.Builder
		b.WriteString("\033[H\033[2J")
		for _, k := range []pamixer.Kind{pamixer.KindSink, pamixer.KindInput} {
			s.Cache().View(k, func(o *pamixer.Object) bool {
				fmt.Fprintf(&b, "%-14s %-30.30s %s\n", k, o.Name, strings.Repeat("#", int(o.Peak*40)))
				return true
			})
		}
		fmt.Print(b.String())
	}
}
