package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"ppup1090core/lib/producer"
	"ppup1090core/lib/tracker"
	"ppup1090core/lib/tracker/mode_s"
)

const (
	Fetch  = "fetch"
	Listen = "listen"
	File   = "file"
	RefLat = "ref-lat"
	RefLon = "ref-lon"
	Tag    = "tag"
)

var (
	prometheusInputBeastFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pw_ingest_input_beast_total",
		Help: "The total number of beast frames processed.",
	})
	prometheusInputAvrFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pw_ingest_input_avr_total",
		Help: "The total number of AVR frames processed.",
	})
)

// IncludeSourceFlags registers the flags that describe where decoded
// frames come from (spec.md §6: net_input_beast_ipaddr/port, net_pp_ipaddr).
func IncludeSourceFlags(app *cli.App) {
	sourceFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    Fetch,
			Usage:   "The Source in URL Form. [avr|beast]://host:port?tag=MYTAG&refLat=-31.0&refLon=115.0",
			EnvVars: []string{"SOURCE"},
		},
		&cli.StringSliceFlag{
			Name:    Listen,
			Usage:   "The Source in URL Form. [avr|beast]://host:port?tag=MYTAG&refLat=-31.0&refLon=115.0",
			EnvVars: []string{"LISTEN"},
		},
		&cli.StringSliceFlag{
			Name:    File,
			Usage:   "The Source in URL Form. [avr|beast]:///path/to/file?tag=MYTAG&refLat=-31.0&refLon=115.0&delay=no",
			EnvVars: []string{"FILE"},
		},
		&cli.Float64Flag{
			Name:    RefLat,
			Usage:   "The reference latitude for decoding messages. Needs to be within 45nm of where the messages are generated.",
			EnvVars: []string{"REF_LAT", "LAT"},
		},
		&cli.Float64Flag{
			Name:    RefLon,
			Usage:   "The reference longitude for decoding messages. Needs to be within 45nm of where the messages are generated.",
			EnvVars: []string{"REF_LON", "LONG"},
		},
		&cli.StringFlag{
			Name:    Tag,
			Usage:   "A value that is included in the payloads output to the Sinks. Useful for knowing where something came from",
			EnvVars: []string{"TAG"},
		},
	}

	app.Flags = append(app.Flags, sourceFlags...)
}

// HandleSourceFlags builds one tracker.Producer per --fetch/--listen/--file
// flag value.
func HandleSourceFlags(c *cli.Context) ([]tracker.Producer, error) {
	refLat := c.Float64(RefLat)
	refLon := c.Float64(RefLon)
	defaultTag := c.String(Tag)

	// One whitelist shared by every Producer this call builds, so frames
	// from different receivers feeding the same Tracker recognise each
	// other's recently-seen ICAO addresses (spec.md §4.1) instead of each
	// source decoding against its own isolated cache.
	icaoCache := mode_s.NewIcaoCache()

	out := make([]tracker.Producer, 0)

	for _, fetchUrl := range c.StringSlice(Fetch) {
		log.Debug().Str("fetch-url", fetchUrl).Msg("With Fetch")
		p, err := handleSource(fetchUrl, defaultTag, refLat, refLon, false, icaoCache)
		if err != nil {
			log.Error().Err(err).Str("url", fetchUrl).Str("what", "fetch").Msg("Failed setup source")
			return nil, err
		}
		out = append(out, p)
	}
	for _, listenUrl := range c.StringSlice(Listen) {
		log.Debug().Str("listen-url", listenUrl).Msg("With Listen")
		p, err := handleSource(listenUrl, defaultTag, refLat, refLon, true, icaoCache)
		if err != nil {
			log.Error().Err(err).Str("url", listenUrl).Str("what", "listen").Msg("Failed setup listen")
			return nil, err
		}
		out = append(out, p)
	}
	for _, fileUrl := range c.StringSlice(File) {
		log.Debug().Str("file-url", fileUrl).Msg("With File")
		p, err := handleFileSource(fileUrl, defaultTag, refLat, refLon, icaoCache)
		if err != nil {
			log.Error().Err(err).Str("url", fileUrl).Msgf("Failed to understand URL: %s", err)
			return nil, err
		}
		out = append(out, p)
	}

	return out, nil
}

func getRef(parsedUrl *url.URL, what string, defaultRef float64) float64 {
	if parsedUrl == nil {
		return 0
	}
	if parsedUrl.Query().Has(what) {
		f, err := strconv.ParseFloat(parsedUrl.Query().Get(what), 64)
		if err == nil {
			return f
		}
		log.Error().Err(err).Str("query_param", what).Msg("Could not determine reference value")
	}
	return defaultRef
}

func getTag(parsedUrl *url.URL, defaultTag string) string {
	if parsedUrl != nil && parsedUrl.Query().Has("tag") {
		return parsedUrl.Query().Get("tag")
	}
	return defaultTag
}

func sourceTypeFromScheme(scheme string) (producer.SourceType, error) {
	switch strings.ToLower(scheme) {
	case "avr":
		return producer.Avr, nil
	case "beast":
		return producer.Beast, nil
	default:
		return 0, fmt.Errorf("unknown scheme: %s, expected one of [avr|beast]", scheme)
	}
}

func handleSource(urlSource, defaultTag string, defaultRefLat, defaultRefLon float64, listen bool, icaoCache *mode_s.IcaoCache) (tracker.Producer, error) {
	parsedUrl, err := url.Parse(urlSource)
	if err != nil {
		return nil, err
	}

	sourceType, err := sourceTypeFromScheme(parsedUrl.Scheme)
	if err != nil {
		return nil, err
	}

	producerOpts := []producer.Option{
		producer.WithSourceTag(getTag(parsedUrl, defaultTag)),
		producer.WithType(sourceType),
		producer.WithPrometheusCounters(prometheusInputAvrFrames, prometheusInputBeastFrames),
		producer.WithIcaoCache(icaoCache),
	}

	refLat := getRef(parsedUrl, "refLat", defaultRefLat)
	refLon := getRef(parsedUrl, "refLon", defaultRefLon)
	if refLat != 0 && refLon != 0 {
		producerOpts = append(producerOpts, producer.WithReferenceLatLon(refLat, refLon))
	} else {
		log.Error().
			Float64("ref-lat", refLat).
			Float64("ref-lon", refLon).
			Msg("Do not have a reference lat/lon - will not decode surface position frames")
	}

	if listen {
		producerOpts = append(producerOpts, producer.WithListener(parsedUrl.Hostname(), parsedUrl.Port()))
	} else {
		producerOpts = append(producerOpts, producer.WithFetcher(parsedUrl.Hostname(), parsedUrl.Port()))
	}

	return producer.New(producerOpts...), nil
}

func handleFileSource(urlFile, defaultTag string, defaultRefLat, defaultRefLon float64, icaoCache *mode_s.IcaoCache) (tracker.Producer, error) {
	parsedUrl, err := url.Parse(urlFile)
	if err != nil {
		return nil, err
	}

	sourceType, err := sourceTypeFromScheme(parsedUrl.Scheme)
	if err != nil {
		return nil, fmt.Errorf("unknown file type: %w", err)
	}

	producerOpts := []producer.Option{producer.WithType(sourceType), producer.WithIcaoCache(icaoCache)}

	if sourceType == producer.Beast {
		delay := false
		if parsedUrl.Query().Has("delay") {
			switch strings.ToLower(parsedUrl.Query().Get("delay")) {
			case "", "no", "false", "0":
				delay = false
			default:
				delay = true
			}
		}
		producerOpts = append(producerOpts, producer.WithBeastDelay(delay))
	}

	refLat := getRef(parsedUrl, "refLat", defaultRefLat)
	refLon := getRef(parsedUrl, "refLon", defaultRefLon)
	if refLat != 0 && refLon != 0 {
		producerOpts = append(producerOpts, producer.WithReferenceLatLon(refLat, refLon))
	}

	producerOpts = append(
		producerOpts,
		producer.WithSourceTag(getTag(parsedUrl, defaultTag)),
		producer.WithFiles([]string{parsedUrl.Path}),
	)

	return producer.New(producerOpts...), nil
}
