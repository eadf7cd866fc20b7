package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionCount   int     `yaml:"questionCount"`
		Pacing          string  `yaml:"pacing"`
		QuestionTimeout string  `yaml:"questionTimeout"`
		PoolTTL         string  `yaml:"poolTTL"`
		SceneRatio      float64 `yaml:"sceneRatio"`
		SceneMinimum    int     `yaml:"sceneMinimum"`
		PersonRatio     float64 `yaml:"personRatio"`
		PersonMinimum   int     `yaml:"personMinimum"`
		// MustIncludeContains forces at least MustIncludeMin general
		// questions whose text contains the substring.
		MustIncludeMin      int    `yaml:"mustIncludeMin"`
		MustIncludeContains string `yaml:"mustIncludeContains"`
		// Sentinel pins a fixed question at a fixed position. Enabled
		// when SentinelText is non-empty.
		SentinelPosition int    `yaml:"sentinelPosition"`
		SentinelText     string `yaml:"sentinelText"`
		SentinelAnswer   string `yaml:"sentinelAnswer"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
