package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfreymuth/pamixer"
	"github.com/jfreymuth/pamixer/proto"
)

func dumpCommand(a *app) *cobra.Command {
	var (
		asJSON  bool
		quiet   time.Duration
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the server's objects once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyFlags(cmd)
			a.settings.UI.Enabled = false
			if err := a.openLog(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			snap, err := settle(ctx, a.sessionOptions(nil), quiet)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			return writeTable(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().DurationVar(&quiet, "settle", 300*time.Millisecond, "wait until the cache has been unchanged this long")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long")
	return cmd
}

// settle connects and returns the first snapshot after the cache stopped changing for quiet.
// Peak updates count as changes, so metering is disabled for the dump.
func settle(ctx context.Context, opts []pamixer.Option, quiet time.Duration) (pamixer.Snapshot, error) {
	var lastChange atomic.Int64
	lastChange.Store(time.Now().UnixNano())
	opts = append(opts,
		pamixer.WithoutPeaks(),
		pamixer.WithUpdateCallback(func() { lastChange.Store(time.Now().UnixNano()) }))

	session := pamixer.NewSession(opts...)
	defer session.Close()
	if err := session.Start(ctx); err != nil {
		return pamixer.Snapshot{}, err
	}

	ticker := time.NewTicker(max(quiet/4, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return pamixer.Snapshot{}, fmt.Errorf("waiting for the server: %w", ctx.Err())
		case <-ticker.C:
		}
		switch state := session.State(); {
		case state.Terminal():
			return pamixer.Snapshot{}, fmt.Errorf("session %s: %w", state, session.Err())
		case state != pamixer.StateReady:
			lastChange.Store(time.Now().UnixNano())
			continue
		}
		if time.Since(time.Unix(0, lastChange.Load())) >= quiet {
			return session.Snapshot(), nil
		}
	}
}

func writeTable(w io.Writer, snap pamixer.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tINDEX\tNAME\tVOLUME\tMUTE\tDETAIL")
	for _, k := range pamixer.Kinds {
		for _, o := range snap.Of(k) {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d%%\t%t\t%s\n",
				k, o.Index, o.Name, o.Volume.Percent(), o.Mute, detail(o))
		}
	}
	return tw.Flush()
}

func detail(o pamixer.Object) string {
	switch {
	case o.Stream != nil && o.Kind == pamixer.KindInput:
		return fmt.Sprintf("sink=%d app=%s", o.Stream.Device, o.Stream.AppName)
	case o.Stream != nil:
		return fmt.Sprintf("source=%d app=%s", o.Stream.Device, o.Stream.AppName)
	case o.Card != nil:
		return "profile=" + o.Card.ActiveProfile.Name
	}
	return o.ServerName
}

type jsonObject struct {
	Kind    string  `json:"kind"`
	Index   uint32  `json:"index"`
	Name    string  `json:"name"`
	Volume  int     `json:"volume_percent"`
	Mute    bool    `json:"mute"`
	Detail  string  `json:"detail,omitempty"`
	Monitor *uint32 `json:"monitor,omitempty"`
}

func writeJSON(w io.Writer, snap pamixer.Snapshot) error {
	objects := []jsonObject{}
	for _, k := range pamixer.Kinds {
		for _, o := range snap.Of(k) {
			j := jsonObject{
				Kind:   k.String(),
				Index:  o.Index,
				Name:   o.Name,
				Volume: o.Volume.Percent(),
				Mute:   o.Mute,
				Detail: detail(o),
			}
			if o.MonitorIndex != proto.Undefined {
				monitor := o.MonitorIndex
				j.Monitor = &monitor
			}
			objects = append(objects, j)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(objects)
}
