// Command ppup1090core ingests Beast/AVR Mode S traffic, tracks aircraft,
// and republishes the live track set to any combination of GeoJSON,
// websocket, and NATS sinks.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"ppup1090core/lib/example_finder"
	"ppup1090core/lib/logging"
	"ppup1090core/lib/setup"
	"ppup1090core/lib/tracker"
	"ppup1090core/lib/ui"
	"ppup1090core/lib/uploader"
)

const (
	interactiveFlag = "interactive"
	icaoFlag        = "icao"
	dfTypeFlag      = "df-type"
)

func main() {
	app := &cli.App{
		Name:  "ppup1090core",
		Usage: "Mode S / Beast ingestion, tracking, and live republishing",
		Commands: []*cli.Command{
			serveCommand(),
			listCommand(),
		},
	}

	logging.IncludeVerbosityFlags(app)
	logging.ConfigureForCli()

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("ppup1090core exited")
	}
}

func serveCommand() *cli.Command {
	cmd := &cli.Command{
		Name:  "serve",
		Usage: "Continuously ingest sources and keep a live track set",
		Action: func(c *cli.Context) error {
			logging.SetLoggingLevel(c)
			return runServe(c)
		},
	}
	withCommonFlags(cmd)
	cmd.Flags = append(cmd.Flags, &cli.BoolFlag{
		Name:  interactiveFlag,
		Usage: "Show a live terminal table instead of log output",
	})
	return cmd
}

func listCommand() *cli.Command {
	cmd := &cli.Command{
		Name:  "list",
		Usage: "Replay the configured file sources to completion, then print a table of tracked aircraft",
		Action: func(c *cli.Context) error {
			logging.SetLoggingLevel(c)
			return runList(c)
		},
	}
	withCommonFlags(cmd)
	return cmd
}

// withCommonFlags attaches the source and tracker flag sets to cmd. Done as
// a helper since both subcommands need the full flag surface but
// urfave/cli registers flags per-command, not inherited from a shared app.
func withCommonFlags(cmd *cli.Command) {
	sourceApp := &cli.App{}
	setup.IncludeSourceFlags(sourceApp)
	cmd.Flags = append(cmd.Flags, sourceApp.Flags...)

	trackerApp := &cli.App{}
	setup.IncludeTrackerFlags(trackerApp)
	cmd.Flags = append(cmd.Flags, trackerApp.Flags...)

	cmd.Flags = append(cmd.Flags,
		&cli.StringSliceFlag{
			Name:  icaoFlag,
			Usage: "Restrict tracking to one or more hex ICAO addresses (repeatable)",
		},
		&cli.IntSliceFlag{
			Name:  dfTypeFlag,
			Usage: "Restrict tracking to one or more downlink format types (repeatable)",
		},
	)
}

// buildFilter wires an example_finder.Filter from --icao/--df-type when
// either is set, so a run can be narrowed to a handful of aircraft or
// message types without touching the source flags.
func buildFilter(c *cli.Context) tracker.Handler {
	icaos := c.StringSlice(icaoFlag)
	dfTypes := c.IntSlice(dfTypeFlag)
	if len(icaos) == 0 && len(dfTypes) == 0 {
		return nil
	}

	opts := make([]example_finder.Option, 0, len(icaos)+len(dfTypes))
	for _, icao := range icaos {
		opts = append(opts, example_finder.WithPlaneIcaoStr(icao))
	}
	for _, dfType := range dfTypes {
		opts = append(opts, example_finder.WithDownlinkFormatType(byte(dfType)))
	}
	return example_finder.NewFilter(opts...)
}

func buildTracker(cfg setup.TrackerConfig) *tracker.Tracker {
	opts := []tracker.Option{
		tracker.WithModeAC(cfg.ModeAC),
		tracker.WithDeleteTTL(time.Duration(cfg.InteractiveDeleteTTL) * time.Second),
	}
	if cfg.HasUserPosition {
		opts = append(opts, tracker.WithReferencePosition(cfg.UserLat, cfg.UserLon))
	}
	return tracker.New(opts...)
}

func buildUploadManager(cfg setup.TrackerConfig) (*uploader.Manager, error) {
	mgr := uploader.NewManager()
	if cfg.GeoJSONOut != "" {
		if err := mgr.Add(uploader.NewGeoJSONSink(cfg.GeoJSONOut)); err != nil {
			return nil, fmt.Errorf("opening geojson sink: %w", err)
		}
	}
	if cfg.WebsocketListen != "" {
		if err := mgr.Add(uploader.NewWebsocketSink(cfg.WebsocketListen)); err != nil {
			return nil, fmt.Errorf("opening websocket sink: %w", err)
		}
	}
	if cfg.NatsURL != "" {
		if err := mgr.Add(uploader.NewNatsSink(cfg.NatsURL, cfg.NatsSubject)); err != nil {
			return nil, fmt.Errorf("opening nats sink: %w", err)
		}
	}
	return mgr, nil
}

func runServe(c *cli.Context) error {
	cfg, err := setup.HandleTrackerFlags(c)
	if err != nil {
		return err
	}
	producers, err := setup.HandleSourceFlags(c)
	if err != nil {
		return err
	}
	if len(producers) == 0 {
		return fmt.Errorf("no sources configured: use --fetch, --listen, or --file")
	}

	t := buildTracker(cfg)
	mgr, err := buildUploadManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	filter := buildFilter(c)
	stop := make(chan struct{})
	for _, p := range producers {
		go pump(p, t, filter)
	}
	go sweepLoop(t, stop)
	go mgr.Run(t.AllAircraft, time.Second, stop)

	if c.Bool(interactiveFlag) {
		err := ui.Run(t.AllAircraft,
			time.Duration(cfg.InteractiveDisplayTTL)*time.Second,
			time.Second,
		)
		close(stop)
		return err
	}

	select {}
}

func runList(c *cli.Context) error {
	cfg, err := setup.HandleTrackerFlags(c)
	if err != nil {
		return err
	}
	producers, err := setup.HandleSourceFlags(c)
	if err != nil {
		return err
	}
	if len(producers) == 0 {
		return fmt.Errorf("no sources configured: use --file")
	}

	t := buildTracker(cfg)
	filter := buildFilter(c)
	var wg sync.WaitGroup
	for _, p := range producers {
		wg.Add(1)
		go func(p tracker.Producer) {
			defer wg.Done()
			pump(p, t, filter)
		}(p)
	}
	wg.Wait()

	printTable(t.AllAircraft())
	return nil
}

// pump drains a producer's frame events into the tracker until the
// producer's channel closes (source exhausted or Stop called). When filter
// is non-nil, frames it rejects (returns nil) never reach the tracker.
func pump(p tracker.Producer, t *tracker.Tracker, filter tracker.Handler) {
	for fe := range p.Listen() {
		if filter != nil && filter.Handle(fe) == nil {
			continue
		}
		t.Handle(fe)
	}
}

// sweepLoop runs the staleness sweep roughly once a second for the
// lifetime of the process.
func sweepLoop(t *tracker.Tracker, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			t.SweepStaleness(now)
		}
	}
}

func printTable(snapshots []tracker.AircraftSnapshot) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ICAO", "Callsign", "Squawk", "Altitude", "Speed", "Track", "Lat", "Lon", "Msgs"})
	for _, ac := range snapshots {
		altitude := ""
		if ac.HasAltitude {
			altitude = fmt.Sprintf("%d", ac.Altitude)
		}
		squawk := ""
		if ac.HasSquawk {
			squawk = fmt.Sprintf("%04d", ac.Squawk)
		}
		lat, lon := "", ""
		if ac.HasPosition {
			lat = fmt.Sprintf("%.4f", ac.Lat)
			lon = fmt.Sprintf("%.4f", ac.Lon)
		}
		table.Append([]string{
			fmt.Sprintf("%06X", ac.Icao),
			ac.Callsign,
			squawk,
			altitude,
			fmt.Sprintf("%.0f", ac.Speed),
			fmt.Sprintf("%.0f", ac.Track),
			lat,
			lon,
			fmt.Sprintf("%d", ac.Messages),
		})
	}
	table.Render()
}
