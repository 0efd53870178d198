package setup

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// Flag names for the tracker/interactive-view config surface (spec.md §6).
const (
	ModeAC                = "mode-ac"
	UserLat               = "lat"
	UserLon               = "lon"
	InteractiveDeleteTTL  = "interactive-delete-ttl"
	InteractiveDisplayTTL = "interactive-display-ttl"
	GeoJSONOut            = "geojson-out"
	WebsocketListen       = "websocket-listen"
	NatsURL               = "nats-url"
	NatsSubject           = "nats-subject"
	ConfigFile            = "config-file"
)

// TrackerConfig is the fully resolved configuration for a single run,
// gathered from CLI flags, environment variables (via cli's EnvVars), and
// an optional viper-loaded config file for the uploader credentials.
type TrackerConfig struct {
	ModeAC bool

	UserLat, UserLon float64
	HasUserPosition  bool

	InteractiveDeleteTTL  int
	InteractiveDisplayTTL int

	GeoJSONOut      string
	WebsocketListen string
	NatsURL         string
	NatsSubject     string

	Uploader Credentials
}

// Credentials mirrors uploader.Credentials; kept separate so lib/setup does
// not need to import lib/uploader just to describe its config shape.
type Credentials struct {
	AuthCode     string
	Registration string
	Version      string
}

// IncludeTrackerFlags registers the tracker/interactive/sink flags.
func IncludeTrackerFlags(app *cli.App) {
	app.Flags = append(app.Flags,
		&cli.BoolFlag{
			Name:    ModeAC,
			Usage:   "Cross-tag bare Mode A/C replies onto known Mode S tracks",
			Value:   true,
			EnvVars: []string{"MODE_AC"},
		},
		&cli.Float64Flag{
			Name:    UserLat,
			Usage:   "Receiver latitude, used as the surface-CPR/local-CPR reference position",
			EnvVars: []string{"FLAT", "USER_LAT"},
		},
		&cli.Float64Flag{
			Name:    UserLon,
			Usage:   "Receiver longitude, used as the surface-CPR/local-CPR reference position",
			EnvVars: []string{"FLON", "USER_LON"},
		},
		&cli.IntFlag{
			Name:    InteractiveDeleteTTL,
			Usage:   "Seconds an aircraft may go unseen before the tracker drops it",
			Value:   300,
			EnvVars: []string{"INTERACTIVE_DELETE_TTL"},
		},
		&cli.IntFlag{
			Name:    InteractiveDisplayTTL,
			Usage:   "Seconds an aircraft with no fresh update stays in the interactive view",
			Value:   60,
			EnvVars: []string{"INTERACTIVE_DISPLAY_TTL"},
		},
		&cli.StringFlag{
			Name:    GeoJSONOut,
			Usage:   "Path to continuously write a GeoJSON FeatureCollection of the live track set",
			EnvVars: []string{"GEOJSON_OUT"},
		},
		&cli.StringFlag{
			Name:    WebsocketListen,
			Usage:   "host:port to serve a live websocket track broadcast on",
			EnvVars: []string{"WEBSOCKET_LISTEN"},
		},
		&cli.StringFlag{
			Name:    NatsURL,
			Usage:   "NATS server URL to publish the live track set to",
			EnvVars: []string{"NATS_URL"},
		},
		&cli.StringFlag{
			Name:    NatsSubject,
			Usage:   "NATS subject to publish the live track set on",
			Value:   "ppup1090core.aircraft",
			EnvVars: []string{"NATS_SUBJECT"},
		},
		&cli.StringFlag{
			Name:    ConfigFile,
			Usage:   "Path to a YAML/TOML/JSON config file carrying uploader auth-code/registration/version",
			EnvVars: []string{"CONFIG_FILE"},
		},
	)
}

// HandleTrackerFlags resolves the final TrackerConfig from CLI flags and,
// if --config-file is set, a viper-loaded file supplying the uploader's
// semi-secret credentials (spec.md §6: these don't belong on a command
// line since they're sticky per-install values).
func HandleTrackerFlags(c *cli.Context) (TrackerConfig, error) {
	cfg := TrackerConfig{
		ModeAC:                c.Bool(ModeAC),
		UserLat:               c.Float64(UserLat),
		UserLon:               c.Float64(UserLon),
		InteractiveDeleteTTL:  c.Int(InteractiveDeleteTTL),
		InteractiveDisplayTTL: c.Int(InteractiveDisplayTTL),
		GeoJSONOut:            c.String(GeoJSONOut),
		WebsocketListen:       c.String(WebsocketListen),
		NatsURL:               c.String(NatsURL),
		NatsSubject:           c.String(NatsSubject),
	}
	cfg.HasUserPosition = cfg.UserLat != 0 || cfg.UserLon != 0

	if path := c.String(ConfigFile); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		cfg.Uploader = Credentials{
			AuthCode:     v.GetString("auth_code"),
			Registration: v.GetString("registration"),
			Version:      v.GetString("version"),
		}
		log.Debug().Str("file", path).Msg("loaded uploader credentials from config file")
	}

	return cfg, nil
}
