// Seeds the database with a demo organization, profile, and a spread of
// synthetic opportunities for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/db"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

var focusPool = []string{
	"education", "youth", "health", "housing", "arts", "environment",
	"food security", "workforce", "literacy", "mental health",
}

func main() {
	_ = godotenv.Load()

	count := flag.Int("count", 40, "synthetic opportunities to create")
	seed := flag.Int64("seed", 0, "rng seed (0 = random)")
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
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
	store := db.NewStore(pool)

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}
	orgID, err := store.CreateOrganization(ctx, "Demo Community Org", "demo@example.org", string(hash))
	if err != nil {
		log.Fatalf("creating demo org (already seeded?): %v", err)
	}

	budgetMin, budgetMax := 50_000.0, 200_000.0
	profile := models.OrganizationProfile{
		OrgID:      orgID,
		Mission:    "Expanding educational opportunity for local youth",
		FocusAreas: []string{"education", "youth"},
		Keywords:   []string{"after school", "mentoring", "literacy"},
		City:       "Atlanta",
		State:      "GA",
		BudgetMin:  &budgetMin,
		BudgetMax:  &budgetMax,
		OrgType:    "nonprofit",
	}
	if err := store.UpsertOrgProfile(ctx, profile); err != nil {
		log.Fatal(err)
	}

	sourceTypes := []models.SourceType{
		models.SourceFederal, models.SourceFoundation,
		models.SourceHistorical, models.SourceCorporate,
	}
	scopes := []string{"National", "Georgia", "California", "New York", ""}

	created := 0
	for i := 0; i < *count; i++ {
		focus := focusPool[gofakeit.Number(0, len(focusPool)-1)]
		min := float64(gofakeit.Number(5, 100)) * 1000
		max := min + float64(gofakeit.Number(10, 400))*1000
		deadline := time.Now().AddDate(0, 0, gofakeit.Number(-10, 200))

		opp := models.Opportunity{
			SourceID:   "seed",
			ExternalID: fmt.Sprintf("seed-%d", i),
			Title:      fmt.Sprintf("%s %s Grant", gofakeit.Company(), focus),
			FunderName: gofakeit.Company() + " Foundation",
			Description: fmt.Sprintf("Supports %s programs. %s",
				focus, gofakeit.Paragraph(1, 3, 10, " ")),
			AmountMin:     &min,
			AmountMax:     &max,
			Deadline:      &deadline,
			LocationScope: scopes[gofakeit.Number(0, len(scopes)-1)],
			SourceType:    sourceTypes[gofakeit.Number(0, len(sourceTypes)-1)],
		}
		if _, err := store.UpsertOpportunity(ctx, &opp); err != nil {
			log.Printf("seeding opportunity %d: %v", i, err)
			continue
		}
		created++
	}

	fmt.Printf("Seeded org %s (demo@example.org / demo-password) and %d opportunities\n", orgID, created)
}
