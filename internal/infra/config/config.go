package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // Containers often ship without zoneinfo

	"release_notification_bot/internal/domain/release"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	RunModeOnce   = "once"   // One reconciliation pass, then exit (external scheduler)
	RunModeDaemon = "daemon" // Long-running: cron-driven passes plus chat commands
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken            string
	DatabaseURL              string
	RakutenAppID             string
	RakutenAffiliateID       string
	RakutenRequestsPerSecond float64
	AmazonTrackingID         string // Appended to purchase links, optional
	LogLevel                 string
	Environment              string
	Location                 *time.Location // Calendar days are counted in this zone
	RunMode                  string
	CronSpecReconcile        string
	ReminderDays             []int
	MatchingRulesFile        string
	Rules                    release.Rules
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.RakutenAppID = strings.TrimSpace(os.Getenv("RAKUTEN_APP_ID"))
	if cfg.RakutenAppID == "" {
		return nil, fmt.Errorf("RAKUTEN_APP_ID is not set")
	}
	cfg.RakutenAffiliateID = strings.TrimSpace(os.Getenv("RAKUTEN_AFFILIATE_ID"))
	cfg.AmazonTrackingID = strings.TrimSpace(os.Getenv("AMAZON_TRACKING_ID"))

	cfg.RakutenRequestsPerSecond = 1 // Rakuten allows roughly one request per second per application
	if v := os.Getenv("RAKUTEN_REQUESTS_PER_SECOND"); v != "" {
		cfg.RakutenRequestsPerSecond, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RAKUTEN_REQUESTS_PER_SECOND: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = "Asia/Tokyo" // Release dates are Japanese calendar days
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.RunMode = strings.ToLower(os.Getenv("RUN_MODE"))
	if cfg.RunMode == "" {
		cfg.RunMode = RunModeOnce
	}
	if cfg.RunMode != RunModeOnce && cfg.RunMode != RunModeDaemon {
		return nil, fmt.Errorf("invalid RUN_MODE %q: expected %q or %q", cfg.RunMode, RunModeOnce, RunModeDaemon)
	}

	cfg.CronSpecReconcile = os.Getenv("CRON_SPEC_RECONCILE")
	if cfg.CronSpecReconcile == "" {
		cfg.CronSpecReconcile = "0 8 * * *" // Default: 8:00 AM daily
	}

	cfg.ReminderDays, err = parseReminderDays(os.Getenv("REMINDER_DAYS"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_DAYS: %w", err)
	}

	cfg.MatchingRulesFile = os.Getenv("MATCHING_RULES_FILE")
	cfg.Rules, err = LoadRules(cfg.MatchingRulesFile)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadRules reads matching rules from a YAML file. Lists present in the file
// replace the built-in ones; absent lists keep their defaults. An empty path
// returns the defaults.
func LoadRules(path string) (release.Rules, error) {
	rules := release.DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read MATCHING_RULES_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse MATCHING_RULES_FILE %s: %w", path, err)
	}
	return rules, nil
}

func parseReminderDays(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return []int{30, 14, 7, 0}, nil
	}
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative offset %d", d)
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no offsets in %q", raw)
	}
	return days, nil
}
