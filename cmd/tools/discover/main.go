// Runs one discovery pass from the command line and prints the ranked
// matches. Profiles can come from the database or from a directory of
// JSON files for offline use.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/db"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/discovery"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/ingest"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/profile"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/scoring"
)

func main() {
	_ = godotenv.Load()

	orgFlag := flag.String("org", "", "organization id (uuid)")
	queryFlag := flag.String("q", "", "free-text query terms")
	limitFlag := flag.Int("limit", 20, "max ranked results")
	refreshFlag := flag.Bool("refresh", false, "rescore cached matches")
	profileDirFlag := flag.String("profiles", "", "read profiles from <dir>/<org_id>.json instead of the database")
	flag.Parse()

	orgID, err := uuid.Parse(*orgFlag)
	if err != nil {
		log.Fatalf("-org must be a valid uuid: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatal(err)
	}

	registry, err := ingest.LoadRegistry("internal/ingest/config/sources.yaml")
	if err != nil {
		log.Fatal(err)
	}
	adapters, skipped, err := registry.Build(ingest.NewClient(registry.Fetch))
	if err != nil {
		log.Fatal(err)
	}

	store := db.NewStore(pool)
	var profiles profile.Reader = profile.NewPGReader(store)
	if *profileDirFlag != "" {
		profiles = profile.NewFileReader(*profileDirFlag)
	}

	orch := discovery.New(adapters, skipped, store, profiles,
		scoring.NewEngine(scoring.DefaultWeights()), discovery.Config{})

	query := ingest.Query{}
	if *queryFlag != "" {
		query.Terms = strings.Fields(*queryFlag)
	}

	result, err := orch.Discover(ctx, orgID, query, *limitFlag, *refreshFlag)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Run %s: %d added, %d updated, %d from cache\n",
		result.Run.ID, result.Run.NewlyAdded, result.Run.Updated, result.Run.FromCache)
	if len(result.Run.SourcesSkipped) > 0 {
		fmt.Printf("Skipped sources: %s\n", strings.Join(result.Run.SourcesSkipped, ", "))
	}
	for _, failure := range result.Errors {
		fmt.Printf("Source %s failed: %s\n", failure.Source, failure.Reason)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Score", "Conf", "Title", "Funder", "Deadline", "Amount"})

	for _, item := range result.Ranked {
		opp := item.Opportunity
		deadline := "-"
		if opp.Deadline != nil {
			deadline = opp.Deadline.Format("2006-01-02")
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%.1f", item.Match.CompositeScore),
			item.Match.Confidence,
			ingest.TruncateText(opp.Title, 50),
			ingest.TruncateText(opp.FunderName, 30),
			deadline,
			formatAmount(opp),
		})
	}
	t.Render()
}

func formatAmount(opp models.Opportunity) string {
	switch {
	case opp.AmountMin != nil && opp.AmountMax != nil:
		return fmt.Sprintf("$%.0f-$%.0f", *opp.AmountMin, *opp.AmountMax)
	case opp.AmountMax != nil:
		return fmt.Sprintf("up to $%.0f", *opp.AmountMax)
	case opp.AmountMin != nil:
		return fmt.Sprintf("from $%.0f", *opp.AmountMin)
	}
	return "-"
}
