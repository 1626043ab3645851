package config

import (
	"sync"
)

var (
	dbOnce   sync.Once
	dbConfig *DatabaseConfig
)

// DatabaseConfig points at the book record store. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN string
}

func GetDatabaseConfig() *DatabaseConfig {
	dbOnce.Do(func() {
		loadEnv()
		dbConfig = &DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", ""),
		}
	})
	return dbConfig
}
