//go:build linux

// Command lnmgrd is the link-manager daemon: it loads a declarative config
// file, builds an in-memory dependency graph, and drives it toward the
// declared intent via a single-threaded reactor that watches kernel link
// events, wireless events and a local control socket.
package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/routerwrt/lnmgr/internal/action"
	"github.com/routerwrt/lnmgr/internal/config"
	"github.com/routerwrt/lnmgr/internal/control"
	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/ingest"
	"github.com/routerwrt/lnmgr/internal/kernel"
	"github.com/routerwrt/lnmgr/internal/lnlog"
	"github.com/routerwrt/lnmgr/internal/reactor"
)

const controlSocketPath = "/run/lnmgr.sock"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.json>\n", os.Args[0])
		return 1
	}

	devMode := os.Getenv("LNMGR_DEV") != ""
	if devMode {
		lnlog.Init(lnlog.DevelopmentConfig())
	} else {
		lnlog.Init(lnlog.DefaultConfig())
	}
	log := lnlog.Named("main")

	g := graph.New()

	doc, err := config.LoadFile(os.Args[1])
	if err != nil {
		log.Error().Err(err).Str("path", os.Args[1]).Msg("failed to load configuration")
		return 1
	}

	ctx := context.Background()
	if err := config.Apply(ctx, g, doc); err != nil {
		log.Error().Err(err).Msg("failed to apply configuration")
		return 1
	}

	// A Prepare failure here is a structural problem with the declared graph
	// (Topology/Cycle), not an initialization failure: the enabled nodes it
	// implicates move to Failed and the daemon keeps running so subscribers
	// can observe it, exactly as a later Prepare failure inside the reactor's
	// own wakeup loop does. Only config loading/apply, socket bind and
	// netlink init are startup-fatal.
	caps := kernel.DetectCapabilities()
	if err := g.Prepare(caps); err != nil {
		log.Warn().Err(err).Msg("initial graph topology compile failed")
	}

	adapter := kernel.NewLinuxAdapter()
	dispatcher := action.New(adapter)
	for _, n := range g.Nodes() {
		n.Actions = dispatcher
	}

	// The control socket and the kernel signal ingesters are independent fds;
	// open them concurrently rather than paying their setup cost serially.
	var (
		ctrl      *control.Server
		ingesters []ingest.Ingester
	)
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		c, err := control.Listen(controlSocketPath, g)
		if err != nil {
			return fmt.Errorf("open control socket %s: %w", controlSocketPath, err)
		}
		ctrl = c
		return nil
	})
	eg.Go(func() error {
		ings, err := openIngesters()
		if err != nil {
			return fmt.Errorf("open signal ingesters: %w", err)
		}
		ingesters = ings
		return nil
	})
	if err := eg.Wait(); err != nil {
		if ctrl != nil {
			ctrl.Close()
		}
		for _, ing := range ingesters {
			_ = ing.Close()
		}
		log.Error().Err(err).Msg("failed to bring up daemon I/O")
		return 1
	}

	react, err := reactor.New(g, caps, ctrl, ingesters)
	if err != nil {
		ctrl.Close()
		for _, ing := range ingesters {
			_ = ing.Close()
		}
		log.Error().Err(err).Msg("failed to initialize reactor")
		return 1
	}
	defer react.Close()

	log.Info().Str("config", os.Args[1]).Str("socket", controlSocketPath).Msg("lnmgrd running")

	if err := react.Run(ctx); err != nil {
		log.Error().Err(err).Msg("reactor exited with error")
		return 1
	}

	log.Info().Msg("lnmgrd shut down cleanly")
	return 0
}

// openIngesters opens every available signal source. The nl80211 ingester is
// optional: a host with no wireless stack simply runs without it, logged at
// warn rather than treated as fatal.
func openIngesters() ([]ingest.Ingester, error) {
	rt, err := ingest.NewRtnetlinkIngester()
	if err != nil {
		return nil, fmt.Errorf("open rtnetlink ingester: %w", err)
	}

	ingesters := []ingest.Ingester{rt}

	wl, err := ingest.NewNl80211Ingester()
	if err != nil {
		lnlog.Named("main").Warn().Err(err).Msg("nl80211 unavailable, continuing without wireless signals")
		return ingesters, nil
	}
	ingesters = append(ingesters, wl)

	return ingesters, nil
}
