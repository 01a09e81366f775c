package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"weekly-trivia-service/internal/domain"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		PayloadTTL string `yaml:"payloadTtl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		BaseURL        string  `yaml:"baseUrl"`
		APIKey         string  `yaml:"apiKey"`
		RequestTimeout string  `yaml:"requestTimeout"`
		MaxAttempts    int     `yaml:"maxAttempts"`
		RatePerSecond  float64 `yaml:"ratePerSecond"`
	} `yaml:"catalog"`
	Trivia struct {
		MinYear    int                     `yaml:"minYear"`
		MaxYear    int                     `yaml:"maxYear"`
		PayloadTTL string                  `yaml:"payloadTtl"`
		Tiers      []domain.RelaxationTier `yaml:"tiers"`
	} `yaml:"trivia"`
}

// Load reads YAML config from path. The catalog API key may also come from
// the environment so deployments can keep it out of the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Catalog.APIKey == "" {
		cfg.Catalog.APIKey = os.Getenv("CATALOG_API_KEY")
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
