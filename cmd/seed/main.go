// Command seed loads the demo catalog into an empty database.
//
// Usage:
//
//	go run ./cmd/seed            # seeds only when the catalog is empty
//	SEED_FORCE=1 go run ./cmd/seed
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/config"
	"github.com/tbourn/retro-storefront/internal/domain"
	"github.com/tbourn/retro-storefront/internal/repo"
	"github.com/tbourn/retro-storefront/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	sysutil.SetupLogger(os.Stderr, "retro-storefront-seed", cfg.LogPretty)

	db, err := repo.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	n, err := seed(context.Background(), db, sysutil.IsTruthy(os.Getenv("SEED_FORCE")))
	if err != nil {
		log.Fatal().Err(err).Msg("seed catalog")
	}
	log.Info().Int("inserted", n).Msg("seed complete")
}

// seed inserts the demo catalog unless products already exist and force is
// unset. It returns how many products were written.
func seed(ctx context.Context, db *gorm.DB, force bool) (int, error) {
	if !force {
		count, err := repo.CountProducts(ctx, db)
		if err != nil {
			return 0, err
		}
		if count > 0 {
			log.Info().Int64("existing", count).Msg("catalog already seeded")
			return 0, nil
		}
	}

	ps := catalog()
	if err := repo.CreateProducts(ctx, db, ps); err != nil {
		return 0, err
	}
	return len(ps), nil
}

func catalog() []domain.Product {
	img := func(s string) *string { return &s }
	return []domain.Product{
		{
			ID:          uuid.NewString(),
			Name:        "Polaroid Sun 600 Revival",
			Description: "Refurbished instant camera with a fresh flash capacitor.",
			ImageURL:    img("https://images.example.com/polaroid-sun-600.jpg"),
			Price:       decimal.RequireFromString("129.00"),
		},
		{
			ID:          uuid.NewString(),
			Name:        "Cassette Bluetooth Speaker",
			Description: "Tape-deck shell, modern speaker inside.",
			ImageURL:    img("https://images.example.com/cassette-speaker.jpg"),
			Price:       decimal.RequireFromString("89.00"),
		},
		{
			ID:          uuid.NewString(),
			Name:        "Neon Desk Clock",
			Description: "Flip digits with a pink neon underglow.",
			ImageURL:    img("https://images.example.com/neon-desk-clock.jpg"),
			Price:       decimal.RequireFromString("59.00"),
		},
	}
}
