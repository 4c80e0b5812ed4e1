package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/api"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/auth"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/db"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/discovery"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/ingest"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/profile"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/scoring"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	registry, err := ingest.LoadRegistry("internal/ingest/config/sources.yaml")
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}
	client := ingest.NewClient(registry.Fetch)
	adapters, skipped, err := registry.Build(client)
	if err != nil {
		log.Fatalf("Failed to build source adapters: %v", err)
	}
	if len(skipped) > 0 {
		log.Printf("Sources skipped (missing credentials): %s", strings.Join(skipped, ", "))
	}

	store := db.NewStore(pool)
	orch := discovery.New(
		adapters, skipped, store,
		profile.NewPGReader(store),
		scoring.NewEngine(scoring.DefaultWeights()),
		discovery.Config{},
	)

	if schedule := os.Getenv("DISCOVER_SCHEDULE"); schedule != "" {
		startScheduler(schedule, orch)
	}

	srv := api.NewServer(store, auth.NewService(store), orch, registry)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}

// startScheduler runs background discovery passes for the orgs listed in
// DISCOVER_ORG_IDS on the given cron schedule.
func startScheduler(schedule string, orch *discovery.Orchestrator) {
	raw := os.Getenv("DISCOVER_ORG_IDS")
	if raw == "" {
		log.Print("DISCOVER_SCHEDULE set but DISCOVER_ORG_IDS is empty; scheduler disabled")
		return
	}

	var orgIDs []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			log.Printf("Ignoring invalid org id %q in DISCOVER_ORG_IDS", part)
			continue
		}
		orgIDs = append(orgIDs, id)
	}
	if len(orgIDs) == 0 {
		return
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		for _, orgID := range orgIDs {
			result, err := orch.Discover(context.Background(), orgID, ingest.Query{}, 0, false)
			if err != nil {
				log.Printf("[Scheduler] discovery for org %s failed: %v", orgID, err)
				continue
			}
			log.Printf("[Scheduler] org %s: %d added, %d updated, %d failed sources",
				orgID, result.Run.NewlyAdded, result.Run.Updated, len(result.Run.SourcesFailed))
		}
	})
	if err != nil {
		log.Fatalf("Invalid DISCOVER_SCHEDULE %q: %v", schedule, err)
	}
	c.Start()
	log.Printf("Scheduled discovery (%s) for %d orgs", schedule, len(orgIDs))
}
