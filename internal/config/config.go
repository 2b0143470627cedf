// Package config resolves server settings from flags, environment variables and
// an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/ecoleta/internal/geo"
)

// Config holds everything the server needs at start-up.
type Config struct {
	Addr        string
	DBPath      string
	AdminUser   string
	LogPath     string
	PublicURL   string
	GeoBaseURL  string
	CORSOrigins []string
	GeoCacheTTL time.Duration
}

const usage = `Usage: ecoleta [flags]

Flags:
  -d, -db <path>          SQLite database path (env ECOLETA_DB, default: ecoleta.sqlite3)
  -a, -addr <host:port>   listen address (env ECOLETA_ADDR or PORT, default: :3333)
  -u, -user <name>        admin username on first run (env ECOLETA_ADMIN, default: Admin)
  -l, -log <path>         log file path (env ECOLETA_LOG, default: stdout/stderr only)
  -public-url <url>       base URL used in item image links (env ECOLETA_PUBLIC_URL)
  -geo-url <url>          IBGE localities API base URL (env ECOLETA_GEO_URL)
  -geo-ttl <duration>     how long region lookups are cached (env ECOLETA_GEO_TTL, default: 24h)
  -cors <origins>         comma-separated allowed origins (env ECOLETA_CORS, default: *)
  -h, -help               show this help and exit

Environment variables may also be set in a .env file in the working directory.
`

// LoadEnvFile loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse reads flags from args. Flags left unset fall back to the variables
// returned by getenv, then to built-in defaults. It returns flag.ErrHelp when
// help was requested.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(def string, keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return def
	}

	defAddr := env(":3333", "ECOLETA_ADDR")
	if port := getenv("PORT"); port != "" && getenv("ECOLETA_ADDR") == "" {
		defAddr = ":" + port
	}

	flags := flag.NewFlagSet("ecoleta", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	cfg := &Config{}
	flags.StringVar(&cfg.DBPath, "db", env("ecoleta.sqlite3", "ECOLETA_DB"), "")
	flags.StringVar(&cfg.DBPath, "d", env("ecoleta.sqlite3", "ECOLETA_DB"), "")

	flags.StringVar(&cfg.Addr, "addr", defAddr, "")
	flags.StringVar(&cfg.Addr, "a", defAddr, "")

	flags.StringVar(&cfg.AdminUser, "user", env("Admin", "ECOLETA_ADMIN"), "")
	flags.StringVar(&cfg.AdminUser, "u", env("Admin", "ECOLETA_ADMIN"), "")

	flags.StringVar(&cfg.LogPath, "log", env("", "ECOLETA_LOG"), "")
	flags.StringVar(&cfg.LogPath, "l", env("", "ECOLETA_LOG"), "")

	flags.StringVar(&cfg.PublicURL, "public-url", env("", "ECOLETA_PUBLIC_URL"), "")
	flags.StringVar(&cfg.GeoBaseURL, "geo-url", env(geo.DefaultBaseURL, "ECOLETA_GEO_URL"), "")

	cors := env("*", "ECOLETA_CORS")
	flags.StringVar(&cors, "cors", cors, "")

	ttl := env("24h", "ECOLETA_GEO_TTL")
	flags.StringVar(&ttl, "geo-ttl", ttl, "")

	flags.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	d, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid geo cache ttl %q: %w", ttl, err)
	}
	cfg.GeoCacheTTL = d

	for _, o := range strings.Split(cors, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost" + portSuffix(cfg.Addr)
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return cfg, nil
}

// portSuffix returns ":port" from a listen address, or "" when there is none.
func portSuffix(addr string) string {
	i := strings.LastIndex(addr, ":")
	if i < 0 || i == len(addr)-1 {
		return ""
	}
	return addr[i:]
}
