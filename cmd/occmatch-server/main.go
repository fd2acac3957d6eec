// Command occmatch-server wires the HTTP surface, the decision store, and
// the score cache together, mirroring app.py's startup_event.
package main

import (
	"context"
	"log"
	"time"

	"github.com/bitem-heg-geneve/occmatch/internal/cache"
	"github.com/bitem-heg-geneve/occmatch/internal/httpapi"
	"github.com/bitem-heg-geneve/occmatch/internal/store"
	"github.com/bitem-heg-geneve/occmatch/pkg/config"
)

func main() {
	cfg := config.NewDefaultConfig()
	ctx := context.Background()

	s, err := store.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("[FATAL] connect to store: %v", err)
	}
	defer s.Close()

	c, err := cache.New(cfg.RedisURL, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	if err != nil {
		log.Fatalf("[FATAL] connect to cache: %v", err)
	}
	defer func() { _ = c.Close() }()

	app := httpapi.New(&httpapi.Server{Store: s, Cache: c})

	log.Printf("[INFO] listening on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("[FATAL] server exited: %v", err)
	}
}
