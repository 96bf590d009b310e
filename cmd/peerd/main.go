// Command peerd runs a single peer endpoint: it registers with
// rendezvous, optionally publishes a local site directory to the
// tracker, optionally fetches one file to prime its cache, and then
// sits serving file-requests for whatever it holds until terminated.
// The browser-facing HTTP surface that would drive Fetch/Publish calls
// interactively is out of scope here (SPEC_FULL.md §1) — this binary is
// the transport-plane daemon that surface would talk to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/log"
	"github.com/dustin/go-humanize"

	"github.com/EDiasAlberto/peerbrowser/internal/storage"
	"github.com/EDiasAlberto/peerbrowser/peer"
	"github.com/EDiasAlberto/peerbrowser/tracker"
)

type cliArgs struct {
	RendezvousHost string `arg:"--matchmaker-host,env:MATCHMAKER_HOST" help:"rendezvous service host"`
	RendezvousPort int    `arg:"--matchmaker-port,env:MATCHMAKER_PORT" help:"rendezvous service port"`
	TrackerURL     string `arg:"--tracker-url,env:TRACKER_SERVER_URL" help:"tracker base URL"`

	StorageRoot string `arg:"--storage-root,required" help:"local directory this peer serves files from and writes fetched files into"`

	PublishSite string `arg:"--publish-site" help:"if set, publish every file under --storage-root/<name> at startup under that same logical prefix, so this peer can actually serve what it advertises"`

	Fetch string `arg:"--fetch" help:"if set, fetch this logical path once at startup and report the result"`
}

func (cliArgs) Description() string {
	return "peerd is a peerbrowser peer endpoint: registers with rendezvous, serves published files, and can fetch one file at startup."
}

const startupFetchTimeout = 30 * time.Second

func main() {
	var cfg cliArgs
	arg.MustParse(&cfg)
	if cfg.RendezvousHost == "" {
		cfg.RendezvousHost = "127.0.0.1"
	}
	if cfg.RendezvousPort == 0 {
		cfg.RendezvousPort = 3478
	}
	if cfg.TrackerURL == "" {
		cfg.TrackerURL = "http://127.0.0.1:8080"
	}

	logger := log.Default

	dir, err := storage.NewDir(cfg.StorageRoot)
	if err != nil {
		logger.Levelf(log.Error, "storage root %q: %v", cfg.StorageRoot, err)
		os.Exit(1)
	}

	endpoint, err := peer.NewEndpoint(peer.Config{
		RendezvousAddr: fmt.Sprintf("%s:%d", cfg.RendezvousHost, cfg.RendezvousPort),
		Logger:         logger,
		Storage:        dir,
		Sink:           dir,
	})
	if err != nil {
		logger.Levelf(log.Error, "creating endpoint: %v", err)
		os.Exit(1)
	}
	endpoint.Start()
	defer endpoint.Stop()

	if err := endpoint.Register(); err != nil {
		logger.Levelf(log.Error, "registering with rendezvous: %v", err)
		os.Exit(1)
	}
	logger.Levelf(log.Info, "peer endpoint bound to %v", endpoint.LocalAddr())

	trackerClient := tracker.NewClient(cfg.TrackerURL)
	driver := &peer.Driver{Endpoint: endpoint, Tracker: trackerClient, Logger: logger}

	if cfg.PublishSite != "" {
		siteDir := filepath.Join(cfg.StorageRoot, cfg.PublishSite)
		assets, err := driver.Publish(siteDir, cfg.PublishSite)
		if err != nil {
			logger.Levelf(log.Error, "publishing %q: %v", cfg.PublishSite, err)
			os.Exit(1)
		}
		var total int64
		for _, a := range assets {
			total += a.Size
		}
		logger.Levelf(log.Info, "published %d assets under %q (%s)", len(assets), cfg.PublishSite, humanize.Bytes(uint64(total)))
	}

	if cfg.Fetch != "" {
		ctx, cancel := context.WithTimeout(context.Background(), startupFetchTimeout)
		data, err := driver.Fetch(ctx, cfg.Fetch)
		cancel()
		if err != nil {
			logger.Levelf(log.Error, "fetching %q: %v", cfg.Fetch, err)
		} else {
			logger.Levelf(log.Info, "fetched %q (%s)", cfg.Fetch, humanize.Bytes(uint64(len(data))))
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	logger.Levelf(log.Info, "shutting down")
}
