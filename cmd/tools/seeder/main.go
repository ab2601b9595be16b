// Command seeder creates a demo account with sample saved calculations and reminders.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
	"github.com/noah-isme/taxestimator-api/internal/tax"
)

type sampleCalculation struct {
	Kind   calculator.Kind
	Inputs string
}

var sampleCalculations = []sampleCalculation{
	{calculator.KindPersonal, `{"annual_income": 5000000, "rent_relief": 0}`},
	{calculator.KindPersonal, `{"annual_income": 1200000}`},
	{calculator.KindPayroll, `{"monthly_salary": 450000, "pension_rate_percent": 8, "housing_fund_rate_percent": 2.5}`},
	{calculator.KindBusiness, `{"annual_revenue": 50000000, "annual_expenses": 30000000}`},
}

type sampleReminder struct {
	Title       string
	Description string
	InDays      int
	Category    reminder.Category
}

var sampleReminders = []sampleReminder{
	{"Remit monthly PAYE", "PAYE deductions are due by the 10th of the following month.", 3, reminder.CategoryPayment},
	{"File annual personal return", "Individual returns are due by 31 March.", 30, reminder.CategoryFiling},
	{"Company income tax filing", "File within six months of the financial year end.", 90, reminder.CategoryFiling},
	{"Renew tax clearance certificate", "", 120, reminder.CategoryOther},
}

func main() {
	var (
		name     = flag.String("name", "Demo User", "demo account name")
		email    = flag.String("email", "demo@taxestimator.local", "demo account email")
		password = flag.String("password", "password123", "demo account password")
	)
	flag.Parse()
	decimal.MarshalJSONWithoutQuotes = true

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, relying on environment variables")
	}
	logger := obs.Component(obs.NewLogger("console", "info"), "seeder")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	userID, err := seedUser(ctx, db, *name, *email, *password)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed user")
	}
	logger.Info().Str("user_id", userID).Str("email", *email).Msg("demo user ready")

	calc := calculator.New(tax.MustDefaultEngine())
	if err := seedCalculations(ctx, db, calc, userID, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed calculations")
	}
	if err := seedReminders(ctx, db, userID, time.Now().UTC(), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed reminders")
	}
	logger.Info().Msg("seeding completed")
}

func seedUser(ctx context.Context, db *sql.DB, name, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var id string
	err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE lower(email) = $1`, email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id`, name, email, hash).Scan(&id)
	return id, err
}

func seedCalculations(ctx context.Context, db *sql.DB, calc *calculator.Calculator, userID string, logger zerolog.Logger) error {
	var existing int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM calculations WHERE user_id = $1`, userID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		logger.Info().Int("existing", existing).Msg("calculations already seeded")
		return nil
	}
	for _, s := range sampleCalculations {
		result, err := calc.Compute(s.Kind, json.RawMessage(s.Inputs))
		if err != nil {
			return err
		}
		results, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO calculations (user_id, calc_type, inputs, results)
			VALUES ($1, $2, $3, $4)`, userID, string(s.Kind), s.Inputs, string(results)); err != nil {
			return fmt.Errorf("insert %s calculation: %w", s.Kind, err)
		}
	}
	logger.Info().Int("count", len(sampleCalculations)).Msg("calculations seeded")
	return nil
}

func seedReminders(ctx context.Context, db *sql.DB, userID string, now time.Time, logger zerolog.Logger) error {
	var existing int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM reminders WHERE user_id = $1`, userID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		logger.Info().Int("existing", existing).Msg("reminders already seeded")
		return nil
	}
	for _, s := range sampleReminders {
		due := now.AddDate(0, 0, s.InDays).Format(reminder.DateLayout)
		if _, err := db.ExecContext(ctx, `
			INSERT INTO reminders (user_id, title, description, due_date, category)
			VALUES ($1, $2, $3, $4, $5)`, userID, s.Title, s.Description, due, string(s.Category)); err != nil {
			return fmt.Errorf("insert reminder %q: %w", s.Title, err)
		}
	}
	logger.Info().Int("count", len(sampleReminders)).Msg("reminders seeded")
	return nil
}
