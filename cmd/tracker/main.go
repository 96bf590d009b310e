// Command tracker runs the HTTP content→holders index described in
// SPEC_FULL.md §4.2/§6: peers consult it to discover holders of a file,
// publish themselves as holders, and report dead candidates.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/log"
	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml"

	"github.com/EDiasAlberto/peerbrowser/tracker"
)

type cliArgs struct {
	Host string `arg:"--host,env:TRACKER_HOST" help:"address to bind the HTTP listener to"`
	Port int    `arg:"--port,env:TRACKER_PORT" help:"HTTP port to bind"`

	ReapInterval  time.Duration `arg:"--reap-interval" help:"if set, evict holders idle longer than --reap-threshold every this often (disabled by default, per §4.2's open question)"`
	ReapThreshold time.Duration `arg:"--reap-threshold" help:"holder idle threshold for the optional reaper"`

	ConfigFile string `arg:"--config" help:"optional TOML file providing host/port defaults; flags and env still take precedence"`
}

func (cliArgs) Description() string {
	return "tracker is the HTTP content-to-holders index peerbrowser peers consult and update."
}

const defaultReapThreshold = 10 * time.Minute

func main() {
	logger := log.Default
	var cfg cliArgs
	loadConfigFileDefaults(&cfg, configFlagValue(os.Args[1:]), logger)
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReapThreshold == 0 {
		cfg.ReapThreshold = defaultReapThreshold
	}
	arg.MustParse(&cfg)

	idx := tracker.NewIndex()
	stop := make(chan struct{})

	if cfg.ReapInterval > 0 {
		reaper := &tracker.Reaper{Index: idx, Threshold: cfg.ReapThreshold, Interval: cfg.ReapInterval, Logger: logger}
		go reaper.Run(stop)
		logger.Levelf(log.Info, "holder reaper enabled: sweeping every %s, threshold %s", cfg.ReapInterval, cfg.ReapThreshold)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: tracker.NewServer(idx)}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Levelf(log.Info, "shutting down; indexed %s known files", humanize.Comma(int64(idx.FileCount())))
		close(stop)
		httpServer.Close()
	}()

	logger.Levelf(log.Info, "tracker listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Levelf(log.Error, "serve: %v", err)
		os.Exit(1)
	}
}

// configFlagValue and loadConfigFileDefaults mirror cmd/rendezvous's
// helpers of the same name: the config file must be read before the
// main args struct is parsed, since it supplies that parse's defaults.
func configFlagValue(argv []string) string {
	for i, a := range argv {
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(argv) {
				return argv[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

func loadConfigFileDefaults(cfg *cliArgs, path string, logger log.Logger) {
	if path == "" {
		return
	}
	cfg.ConfigFile = path
	tree, err := toml.LoadFile(path)
	if err != nil {
		logger.Levelf(log.Warning, "loading config file %q: %v", path, err)
		return
	}
	if host, ok := tree.Get("host").(string); ok {
		cfg.Host = host
	}
	if port, ok := tree.Get("port").(int64); ok {
		cfg.Port = int(port)
	}
}
