package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dm/gridmon/internal/format"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/store"
)

// report is the snapshot command's output.
type report struct {
	Snapshot *model.ClusterSnapshot `json:"snapshot"`
	Caches   []model.CacheNameInfo  `json:"caches"`
}

func newSnapshotCmd(o *options, lookup func(string) (string, bool)) *cobra.Command {
	var (
		wait   time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Poll until one complete snapshot is published, print it and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o, lookup)
			if err != nil {
				return err
			}
			out, closeLog, err := openLogOutput(o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signalContext()
			defer cancel()
			m, err := startMonitor(ctx, cfg, out)
			if err != nil {
				return err
			}
			defer m.close()

			if wait <= 0 {
				wait = 3*cfg.RefreshRate + cfg.EffectiveNodeTimeout()
			}
			waitCtx, waitCancel := context.WithTimeout(ctx, wait)
			defer waitCancel()

			st := m.svc.Store()
			snap, err := waitForSnapshot(waitCtx, st)
			if err != nil {
				return err
			}
			r := report{Snapshot: snap, Caches: st.CacheNames()}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			writeTable(cmd.OutOrStdout(), r, time.Now())
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for a complete snapshot; 0 derives it from the refresh rate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// waitForSnapshot blocks until the store holds a snapshot taken after the
// latest cache-name publication. When ctx expires it returns the best
// snapshot available, or an error if there is none.
func waitForSnapshot(ctx context.Context, st *store.Store) (*model.ClusterSnapshot, error) {
	for {
		changed := st.SnapshotChanged()
		snap, ok := st.Snapshot()
		namesGen, namesAt := st.NamesGeneration()
		if ok && namesGen > 0 && !snap.GeneratedAt.Before(namesAt) {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			if ok {
				return snap, nil
			}
			return nil, fmt.Errorf("no node answered before the deadline: %w", ctx.Err())
		}
	}
}

func writeJSON(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// writeTable prints a summary line and a cache × node table. Unknown
// counts print as "---".
func writeTable(w io.Writer, r report, now time.Time) {
	snap := r.Snapshot
	fmt.Fprintf(w, "generation %d  taken %s  nodes %d/%d reachable  caches %d\n\n",
		snap.Generation, format.FormatAge(snap.GeneratedAt, now), snap.Reachable(), len(snap.Nodes), len(r.Caches))

	header := []string{"Cache", "Kind"}
	for _, ns := range snap.Nodes {
		title := ns.Endpoint.Key()
		if !ns.Reachable {
			title += " (down)"
		}
		header = append(header, title)
	}
	header = append(header, "Total")

	rows := make([][]string, 0, len(r.Caches))
	for _, c := range r.Caches {
		row := []string{c.Name, c.Kind}
		var sum int64
		known := false
		for _, ns := range snap.Nodes {
			count := snap.Count(ns.Endpoint.Key(), c.Name)
			if count.Known {
				sum += count.Value
				known = true
			}
			row = append(row, format.FormatCount(count))
		}
		total := model.Unknown
		if known {
			total = model.Count(sum)
		}
		rows = append(rows, append(row, format.FormatCount(total)))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()

	if len(snap.Nodes) > 0 {
		fmt.Fprintf(w, "\n")
		for _, ns := range snap.Nodes {
			fmt.Fprintf(w, "%s  color %s\n", ns.Endpoint.Key(), ns.Color.Hex())
		}
	}
}
