package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	pipelineOnce   sync.Once
	pipelineConfig *PipelineConfig
)

// VisionModel is one configured vision model.
type VisionModel struct {
	ID       string  `yaml:"id"`
	Provider string  `yaml:"provider"`
	BaseRate float64 `yaml:"baseRate"`
	Tier     string  `yaml:"tier"`
}

// PipelineConfig is the extraction policy. It is read from the YAML file
// named by PIPELINE_CONFIG when set; environment variables override the file.
type PipelineConfig struct {
	AllowExternalCalls      bool               `yaml:"allowExternalCalls"`
	DefaultStrategy         string             `yaml:"defaultStrategy"`
	SuccessThreshold        float64            `yaml:"successThreshold"`
	VisionFallbackThreshold float64            `yaml:"visionFallbackThreshold"`
	StrandTimeout           time.Duration      `yaml:"strandTimeout"`
	RunBudget               time.Duration      `yaml:"runBudget"`
	MaxImageBytes           int64              `yaml:"maxImageBytes"`
	FilenameStrand          bool               `yaml:"filenameStrand"`
	Weights                 map[string]float64 `yaml:"weights"`
	VisionModels            []VisionModel      `yaml:"visionModels"`
	ReplaySchedule          string             `yaml:"replaySchedule"`
	ReplayMax               int                `yaml:"replayMax"`
}

// DefaultPipelineConfig mirrors the built-in orchestrator policy.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		AllowExternalCalls:      true,
		DefaultStrategy:         "best-effort",
		SuccessThreshold:        70,
		VisionFallbackThreshold: 70,
		StrandTimeout:           60 * time.Second,
		RunBudget:               300 * time.Second,
		MaxImageBytes:           20 << 20,
		Weights: map[string]float64{
			"title":         0.30,
			"author":        0.25,
			"isbn13":        0.15,
			"isbn10":        0.10,
			"publisher":     0.08,
			"publishedDate": 0.07,
			"description":   0.05,
		},
		VisionModels: []VisionModel{
			{ID: "anthropic.claude-3-haiku-20240307-v1:0", Provider: "bedrock", BaseRate: 0.0025, Tier: "fast"},
			{ID: "anthropic.claude-3-5-sonnet-20240620-v1:0", Provider: "bedrock", BaseRate: 0.012, Tier: "accurate"},
		},
		ReplaySchedule: "@every 15m",
		ReplayMax:      50,
	}
}

// LoadPipelineConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *PipelineConfig) applyEnv() {
	c.AllowExternalCalls = getBool("ALLOW_EXTERNAL_CALLS", c.AllowExternalCalls)
	c.DefaultStrategy = getEnv("EXTRACTION_STRATEGY", c.DefaultStrategy)
	c.SuccessThreshold = getFloat("SUCCESS_THRESHOLD", c.SuccessThreshold)
	c.VisionFallbackThreshold = getFloat("VISION_FALLBACK_THRESHOLD", c.VisionFallbackThreshold)
	c.StrandTimeout = getDuration("STRAND_TIMEOUT", c.StrandTimeout)
	c.RunBudget = getDuration("RUN_BUDGET", c.RunBudget)
	c.FilenameStrand = getBool("FILENAME_STRAND", c.FilenameStrand)
	c.ReplaySchedule = getEnv("DEADLETTER_REPLAY_SCHEDULE", c.ReplaySchedule)
	c.ReplayMax = getInt("DEADLETTER_REPLAY_MAX", c.ReplayMax)
}

func GetPipelineConfig() *PipelineConfig {
	pipelineOnce.Do(func() {
		loadEnv()
		cfg, err := LoadPipelineConfig(os.Getenv("PIPELINE_CONFIG"))
		if err != nil {
			log.Printf("Warning: %v, using default pipeline config", err)
			cfg = DefaultPipelineConfig()
		}
		cfg.applyEnv()
		pipelineConfig = cfg
	})
	return pipelineConfig
}
