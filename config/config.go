package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4343"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Redis ist optional: ohne Adresse läuft der Cache nur im Prozess.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// Produkt-Cache: Einträge älter als diese TTL gelten als abwesend.
	CacheTTLHours  int    `envconfig:"CACHE_TTL_HOURS" default:"168"`
	SweepSchedule  string `envconfig:"SWEEP_SCHEDULE" default:"0 * * * *"`
	BatchChunkSize int    `envconfig:"BATCH_CHUNK_SIZE" default:"10"`
	BatchPauseMS   int    `envconfig:"BATCH_PAUSE_MS" default:"250"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// CacheTTL gibt die Produkt-Cache-TTL als Duration zurück.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// BatchPause gibt die Pause zwischen zwei Batch-Chunks zurück.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMS) * time.Millisecond
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
