package config

import (
	"sync"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
	authOnce     sync.Once
	authConfig   *AuthConfig
)

type ServerConfig struct {
	Addr           string
	StorageType    string
	AllowedOrigins []string
	MaxUploadBytes int64
	LogLevel       string
	LogMaxSizeMB   int
	LogMaxBackups  int
	LogMaxAgeDays  int
}

// AuthConfig verifies the HS256 tokens issued by the identity service.
type AuthConfig struct {
	JWTSecret   string
	Issuer      string
	EventSecret string
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()
		serverConfig = &ServerConfig{
			Addr:           getEnv("SERVER_ADDR", ":8080"),
			StorageType:    getEnv("STORAGE_TYPE", "s3"),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 20<<20)),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogMaxSizeMB:   getInt("LOG_MAX_SIZE_MB", 100),
			LogMaxBackups:  getInt("LOG_MAX_BACKUPS", 3),
			LogMaxAgeDays:  getInt("LOG_MAX_AGE_DAYS", 7),
		}
	})
	return serverConfig
}

func GetAuthConfig() *AuthConfig {
	authOnce.Do(func() {
		loadEnv()
		authConfig = &AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			Issuer:      getEnv("JWT_ISSUER", ""),
			EventSecret: getEnv("EVENT_SIGNING_SECRET", ""),
		}
	})
	return authConfig
}
