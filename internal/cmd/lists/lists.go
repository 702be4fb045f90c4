// Package lists parses lists command flags and launches the service
// runtime.
package lists

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/list/app"
	entrypoint "github.com/fedilist/fedilist/internal/platform/cmd"
)

// Config holds lists command configuration.
type Config struct {
	HTTPPort      int           `env:"FEDILIST_LISTS_HTTP_PORT" envDefault:"8080"`
	HealthPort    int           `env:"FEDILIST_LISTS_HEALTH_PORT" envDefault:"8081"`
	DBPath        string        `env:"FEDILIST_LISTS_DB_PATH" envDefault:"data/lists.db"`
	BaseIRI       string        `env:"FEDILIST_LISTS_BASE_IRI"`
	PeerInboxes   string        `env:"FEDILIST_LISTS_PEER_INBOXES"`
	Consumer      string        `env:"FEDILIST_LISTS_CONSUMER" envDefault:"federation-delivery"`
	PollInterval  time.Duration `env:"FEDILIST_LISTS_POLL_INTERVAL" envDefault:"5s"`
	LeaseTTL      time.Duration `env:"FEDILIST_LISTS_LEASE_TTL" envDefault:"1m"`
	MaxAttempts   int           `env:"FEDILIST_LISTS_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff  time.Duration `env:"FEDILIST_LISTS_RETRY_BACKOFF" envDefault:"30s"`
	RetryMaxDelay time.Duration `env:"FEDILIST_LISTS_RETRY_MAX_DELAY" envDefault:"1h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The JSON API port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.BaseIRI, "base-iri", cfg.BaseIRI, "The instance base IRI, e.g. https://lists.example")
	fs.StringVar(&cfg.PeerInboxes, "peer-inboxes", cfg.PeerInboxes, "Comma-separated remote inbox URLs")
	fs.StringVar(&cfg.Consumer, "consumer", cfg.Consumer, "Activity outbox consumer name")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Activity outbox poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Activity outbox lease duration")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum delivery attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the lists runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLists, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			HTTPPort:      cfg.HTTPPort,
			HealthPort:    cfg.HealthPort,
			DBPath:        cfg.DBPath,
			BaseIRI:       cfg.BaseIRI,
			PeerInboxes:   splitInboxes(cfg.PeerInboxes),
			Consumer:      cfg.Consumer,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		})
	})
}

func splitInboxes(raw string) []string {
	parts := strings.Split(raw, ",")
	inboxes := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		inboxes = append(inboxes, part)
	}
	return inboxes
}
