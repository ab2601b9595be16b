// Command migrate applies or rolls back the embedded schema migrations.
package main

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/noah-isme/taxestimator-api/internal/migrations"
	"github.com/noah-isme/taxestimator-api/internal/obs"
)

func main() {
	var (
		down  = flag.Int("down", 0, "roll back this many migrations instead of applying")
		dbURL = flag.String("database-url", "", "overrides DATABASE_URL")
	)
	flag.Parse()
	_ = godotenv.Load()

	logger := obs.Component(obs.NewLogger("console", "info"), "migrate")

	url := strings.TrimSpace(*dbURL)
	if url == "" {
		url = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if url == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	if *down > 0 {
		if err := migrations.Down(url, *down); err != nil {
			logger.Fatal().Err(err).Int("steps", *down).Msg("roll back migrations")
		}
		logger.Info().Int("steps", *down).Msg("migrations rolled back")
		return
	}
	version, err := migrations.Up(url)
	if err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	logger.Info().Uint("version", version).Msg("migrations applied")
}
