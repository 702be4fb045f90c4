package lists

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("lists", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("http port = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthPort != 8081 {
		t.Fatalf("health port = %d, want 8081", cfg.HealthPort)
	}
	if cfg.DBPath != "data/lists.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.MaxAttempts != 8 {
		t.Fatalf("max attempts = %d", cfg.MaxAttempts)
	}
}

func TestParseConfigEnvOverrides(t *testing.T) {
	t.Setenv("FEDILIST_LISTS_HTTP_PORT", "9090")
	t.Setenv("FEDILIST_LISTS_BASE_IRI", "https://lists.example")
	t.Setenv("FEDILIST_LISTS_PEER_INBOXES", "https://a.example/inbox, https://b.example/inbox")

	fs := flag.NewFlagSet("lists", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("http port = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.BaseIRI != "https://lists.example" {
		t.Fatalf("base iri = %q", cfg.BaseIRI)
	}
	inboxes := splitInboxes(cfg.PeerInboxes)
	if len(inboxes) != 2 || inboxes[0] != "https://a.example/inbox" || inboxes[1] != "https://b.example/inbox" {
		t.Fatalf("inboxes = %v", inboxes)
	}
}

func TestParseConfigFlagsWin(t *testing.T) {
	t.Setenv("FEDILIST_LISTS_HTTP_PORT", "9090")

	fs := flag.NewFlagSet("lists", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-port", "7070"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("http port = %d, want 7070", cfg.HTTPPort)
	}
}

func TestSplitInboxesEmpty(t *testing.T) {
	if got := splitInboxes(" , "); len(got) != 0 {
		t.Fatalf("inboxes = %v, want none", got)
	}
}
