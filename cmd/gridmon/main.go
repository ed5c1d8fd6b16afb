package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/model"
)

func main() {
	if err := newRoot(os.LookupEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the raw flag values. Only flags the user set override the
// environment.
type options struct {
	refreshRate    time.Duration
	user           string
	pass           string
	portOffset     int
	nodeColor      string
	nodes          string
	dnsNames       string
	dnsPort        int
	nodeTimeout    time.Duration
	maxConcurrency int
	container      string
	metricsAddr    string
	logLevel       string
	logJSON        bool
	logFile        string
	trace          bool
}

func newRoot(lookup func(string) (string, bool)) *cobra.Command {
	return buildRoot(&options{}, lookup)
}

func buildRoot(o *options, lookup func(string) (string, bool)) *cobra.Command {
	root := &cobra.Command{
		Use:           "gridmon",
		Short:         "Per-node cache entry monitor for data grid clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := config.Default()
	pf := root.PersistentFlags()
	pf.DurationVar(&o.refreshRate, "refresh-rate", def.RefreshRate, "delay between poll cycles ("+config.EnvRefreshRate+" in ms)")
	pf.StringVar(&o.user, "mgmt-user", def.Username, "management username ("+config.EnvUsername+")")
	pf.StringVar(&o.pass, "mgmt-pass", def.Password, "management password ("+config.EnvPassword+")")
	pf.IntVar(&o.portOffset, "mgmt-port-offset", def.ManagementPortOffset, "subtracted from each node's cache port to get its management port ("+config.EnvPortOffset+")")
	pf.StringVar(&o.nodeColor, "node-color", "", "fixed node color (#rrggbb, 0xrrggbb or decimal); empty selects multi-color ("+config.EnvNodeColor+")")
	pf.StringVar(&o.nodes, "nodes", strings.Join(def.Nodes, ","), "comma-separated host:port cache endpoints ("+config.EnvNodes+")")
	pf.StringVar(&o.dnsNames, "dns-names", "", "comma-separated DNS names or SRV records; replaces --nodes when set")
	pf.IntVar(&o.dnsPort, "dns-port", def.DNSPort, "cache port used for A/AAAA answers")
	pf.DurationVar(&o.nodeTimeout, "node-timeout", 0, "per-node deadline; 0 derives it from the refresh rate")
	pf.IntVar(&o.maxConcurrency, "max-concurrency", def.MaxConcurrency, "maximum concurrent node queries")
	pf.StringVar(&o.container, "container", def.Container, "cache container name")
	pf.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	pf.StringVar(&o.logLevel, "log-level", def.LogLevel, "trace|debug|info|warn|error ("+config.EnvLogLevel+")")
	pf.BoolVar(&o.logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&o.logFile, "log-file", "", "write logs to this file (watch discards logs otherwise)")
	pf.BoolVar(&o.trace, "trace", false, "enable OpenTelemetry stdout tracing (dev)")

	root.AddCommand(newRunCmd(o, lookup))
	root.AddCommand(newWatchCmd(o, lookup))
	root.AddCommand(newSnapshotCmd(o, lookup))
	return root
}

// loadConfig layers defaults, then environment, then explicitly set flags,
// and validates the result.
func loadConfig(cmd *cobra.Command, o *options, lookup func(string) (string, bool)) (config.Config, error) {
	cfg, err := config.FromEnv(config.Default(), lookup)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("refresh-rate") {
		cfg.RefreshRate = o.refreshRate
	}
	if f.Changed("mgmt-user") {
		cfg.Username = o.user
	}
	if f.Changed("mgmt-pass") {
		cfg.Password = o.pass
	}
	if f.Changed("mgmt-port-offset") {
		cfg.ManagementPortOffset = o.portOffset
	}
	if f.Changed("node-color") {
		cfg.NodeColor = nil
		if o.nodeColor != "" {
			c, err := model.ParseColor(o.nodeColor)
			if err != nil {
				return cfg, &config.Error{Field: "nodeColor", Reason: err.Error()}
			}
			cfg.NodeColor = &c
		}
	}
	if f.Changed("nodes") {
		cfg.Nodes = config.SplitList(o.nodes)
	}
	if f.Changed("dns-names") {
		cfg.DNSNames = config.SplitList(o.dnsNames)
	}
	if f.Changed("dns-port") {
		cfg.DNSPort = o.dnsPort
	}
	if f.Changed("node-timeout") {
		cfg.NodeTimeout = o.nodeTimeout
	}
	if f.Changed("max-concurrency") {
		cfg.MaxConcurrency = o.maxConcurrency
	}
	if f.Changed("container") {
		cfg.Container = o.container
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	cfg.LogJSON = o.logJSON
	cfg.MetricsAddr = o.metricsAddr
	cfg.Trace = o.trace

	return cfg, cfg.Validate()
}

// describeTarget labels the monitored cluster for the dashboard header.
func describeTarget(cfg config.Config) string {
	if len(cfg.DNSNames) > 0 {
		return "dns: " + strings.Join(cfg.DNSNames, ",")
	}
	if len(cfg.Nodes) == 1 {
		return cfg.Nodes[0]
	}
	return fmt.Sprintf("static: %d nodes", len(cfg.Nodes))
}
