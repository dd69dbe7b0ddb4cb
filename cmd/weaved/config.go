package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds daemon configuration. Values are loaded from the config
// file, then overridden by environment variables, then by flags.
type Config struct {
	Addr    string `json:"addr"`
	Backend string `json:"backend"` // "memory", "sqlite", or "neo4j"

	SQLitePath string `json:"sqlite_path"`

	Neo4jURI      string `json:"neo4j_uri"`
	Neo4jUser     string `json:"neo4j_user"`
	Neo4jPassword string `json:"neo4j_password"`
	Neo4jDatabase string `json:"neo4j_database"`
}

func defaultConfig() Config {
	return Config{
		Addr:          ":8080",
		Backend:       "sqlite",
		SQLitePath:    defaultSQLitePath(),
		Neo4jURI:      "bolt://localhost:7687",
		Neo4jUser:     "neo4j",
		Neo4jPassword: "password",
		Neo4jDatabase: "neo4j",
	}
}

func defaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "weave.db"
	}
	return filepath.Join(homeDir, ".local", "share", "weave", "weave.db")
}

func configPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "weave", "config.json")
}

// loadConfig reads the config file if present and applies environment
// overrides. A missing config file is not an error.
func loadConfig() (Config, error) {
	config := defaultConfig()

	if path := configPath(); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, &config); err != nil {
				return config, fmt.Errorf("parsing config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return config, fmt.Errorf("reading config: %w", err)
		}
	}

	config.Addr = getEnv("WEAVE_ADDR", config.Addr)
	config.Backend = getEnv("WEAVE_BACKEND", config.Backend)
	config.SQLitePath = getEnv("WEAVE_SQLITE_PATH", config.SQLitePath)
	config.Neo4jURI = getEnv("NEO4J_URI", config.Neo4jURI)
	config.Neo4jUser = getEnv("NEO4J_USER", config.Neo4jUser)
	config.Neo4jPassword = getEnv("NEO4J_PASSWORD", config.Neo4jPassword)
	config.Neo4jDatabase = getEnv("NEO4J_DATABASE", config.Neo4jDatabase)

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
