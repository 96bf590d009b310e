// Command rendezvous runs the UDP matchmaking service described in
// SPEC_FULL.md §4.1: peers register their observed address here and ask
// to be introduced to another registered peer so both sides can begin
// hole punching.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/log"
	"github.com/anacrolix/missinggo/v2"
	"github.com/pelletier/go-toml"

	"github.com/EDiasAlberto/peerbrowser/rendezvous"
)

type cliArgs struct {
	Host       string `arg:"--host,env:MATCHMAKER_HOST" help:"address to bind the UDP listener to"`
	Port       int    `arg:"--port,env:MATCHMAKER_PORT" help:"UDP port to bind"`
	ConfigFile string `arg:"--config" help:"optional TOML file providing host/port defaults; flags and env still take precedence"`
}

func (cliArgs) Description() string {
	return "rendezvous mediates UDP hole punching introductions between peerbrowser peers."
}

func main() {
	logger := log.Default
	var cfg cliArgs
	loadConfigFileDefaults(&cfg, configFlagValue(os.Args[1:]), logger)
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 3478
	}
	// arg.MustParse only assigns fields it finds a flag, env var, or
	// default tag for; the values seeded above from the config file
	// survive untouched unless a flag or env var overrides them.
	arg.MustParse(&cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv, err := bindWithRetry(addr, logger)
	if err != nil {
		logger.Levelf(log.Error, "bind %s: %v", addr, err)
		os.Exit(1)
	}
	logger.Levelf(log.Info, "rendezvous listening on %v", srv.Addr())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Levelf(log.Info, "shutting down")
		srv.Close()
	}()

	if err := srv.Serve(); err != nil {
		logger.Levelf(log.Error, "serve: %v", err)
		os.Exit(1)
	}
}

// bindWithRetry binds addr, retrying once if the port is already in
// use. Mirrors the teacher's socket.go, which classifies a failed
// listen with missinggo.IsAddrInUse to decide whether a retry is worth
// attempting.
func bindWithRetry(addr string, logger log.Logger) (*rendezvous.Server, error) {
	srv, err := rendezvous.NewServer(addr, logger)
	if err != nil && missinggo.IsAddrInUse(err) {
		logger.Levelf(log.Warning, "address %s in use, retrying once: %v", addr, err)
		srv, err = rendezvous.NewServer(addr, logger)
	}
	return srv, err
}

// configFlagValue extracts --config/-config's value from argv without
// involving go-arg, since the config file must be read before the main
// args struct is parsed (it supplies defaults for that same parse).
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

// loadConfigFileDefaults reads path (if non-empty) as TOML and seeds
// cfg.Host/cfg.Port from it, per §6.1's optional on-disk config file.
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
