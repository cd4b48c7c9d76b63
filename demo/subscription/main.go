package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/jfreymuth/pamixer"
)

func main() {
	server := flag.String("server", "", "server string")
	flag.Parse()

	changes := make(chan struct{}, 1)
	s := pamixer.NewSession(
		pamixer.WithServer(*server),
		pamixer.WithoutPeaks(),
		pamixer.WithStateCallback(func(st pamixer.State) { log.Println("state:", st) }),
		pamixer.WithUpdateCallback(func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		}),
	)
	if err := s.Start(context.Background()); err != nil {
		panic(err)
	}
	defer s.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	seen := map[pamixer.Kind]map[uint32]pamixer.Object{}
	for {
		select {
		case <-interrupt:
			return
		case <-changes:
		}
		snap := s.Snapshot()
		for _, k := range pamixer.Kinds {
			next := map[uint32]pamixer.Object{}
			for _, o := range snap.Of(k) {
				next[o.Index] = o
				old, ok := seen[k][o.Index]
				switch {
				case !ok:
					log.Printf("%s %d new: %s", k, o.Index, o.Name)
				case old.Volume != o.Volume || old.Mute != o.Mute:
					log.Printf("%s %d volume: %d%% mute: %t", k, o.Index, o.Volume.Percent(), o.Mute)
				}
			}
			for index, o := range seen[k] {
				if _, ok := next[index]; !ok {
					log.Printf("%s %d removed: %s", k, index, o.Name)
				}
			}
			seen[k] = next
		}
	}
}
