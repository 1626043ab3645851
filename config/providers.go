package config

import (
	"sync"
	"time"
)

var (
	visionOnce    sync.Once
	visionConfig  *VisionConfig
	catalogOnce   sync.Once
	catalogConfig *CatalogConfig
)

// VisionConfig holds credentials and endpoints of the vision backends. Which
// models run is part of the pipeline config.
type VisionConfig struct {
	BedrockRegion     string
	BedrockAccessKey  string
	BedrockSecretKey  string
	BedrockMaxTokens  int
	GeminiAPIKey      string
	GeminiTemperature float64
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OllamaEndpoint    string
	OllamaPoolSize    int
	CallTimeout       time.Duration
}

type CatalogConfig struct {
	OpenLibraryURL    string
	GoogleBooksAPIKey string
	CacheTTL          time.Duration
	CallTimeout       time.Duration
}

func GetVisionConfig() *VisionConfig {
	visionOnce.Do(func() {
		loadEnv()
		visionConfig = &VisionConfig{
			BedrockRegion:     getEnv("BEDROCK_REGION", getEnv("AWS_REGION", "us-east-1")),
			BedrockAccessKey:  getEnv("BEDROCK_ACCESS_KEY", ""),
			BedrockSecretKey:  getEnv("BEDROCK_SECRET_KEY", ""),
			BedrockMaxTokens:  getInt("BEDROCK_MAX_TOKENS", 1024),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiTemperature: getFloat("GEMINI_TEMPERATURE", 0.1),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OllamaEndpoint:    getEnv("OLLAMA_ENDPOINT", ""),
			OllamaPoolSize:    getInt("OLLAMA_POOL_SIZE", 4),
			CallTimeout:       getDuration("VISION_CALL_TIMEOUT", 60*time.Second),
		}
	})
	return visionConfig
}

func GetCatalogConfig() *CatalogConfig {
	catalogOnce.Do(func() {
		loadEnv()
		catalogConfig = &CatalogConfig{
			OpenLibraryURL:    getEnv("OPENLIBRARY_URL", "https://openlibrary.org"),
			GoogleBooksAPIKey: getEnv("GOOGLE_BOOKS_API_KEY", ""),
			CacheTTL:          getDuration("CATALOG_CACHE_TTL", 24*time.Hour),
			CallTimeout:       getDuration("CATALOG_CALL_TIMEOUT", 10*time.Second),
		}
	})
	return catalogConfig
}
