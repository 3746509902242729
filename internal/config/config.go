package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/revision-hub/revision-hub/internal/domain/diff"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL      string
	DatabaseMaxConns int32
	ServerAddr       string
	MigrationsDir    string
	DiffMemoSize     int
	ImpactRules      []diff.Rule
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "revision_hub")
		pass := getenv("POSTGRES_PASSWORD", "revision_hub_pass")
		db := getenv("POSTGRES_DB", "revision_hub")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	rules := diff.DefaultRules()
	for i := range rules {
		key := "IMPACT_" + strings.ToUpper(string(rules[i].Level)) + "_CONDITION"
		if v := os.Getenv(key); v != "" {
			rules[i].Condition = v
		}
	}

	return &Config{
		DatabaseURL:      dsn,
		DatabaseMaxConns: int32(parseInt(getenv("DATABASE_MAX_CONNS", "10"), 10)),
		ServerAddr:       getenv("SERVER_ADDR", "0.0.0.0:8080"),
		MigrationsDir:    getenv("MIGRATIONS_DIR", "internal/migrations"),
		DiffMemoSize:     parseInt(getenv("DIFF_MEMO_SIZE", "256"), 256),
		ImpactRules:      rules,
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
