package extraction

import (
	"time"

	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/storage"
)

// Config holds the orchestrator policy. Every threshold lives here rather
// than in the run loop.
type Config struct {
	DefaultStrategy         models.Strategy
	SuccessThreshold        float64
	VisionFallbackThreshold float64
	StrandTimeout           time.Duration
	RunBudget               time.Duration
	PatchTimeout            time.Duration
	MaxImageBytes           int64
	FilenameStrand          bool
	Weights                 Weights
}

func DefaultConfig() Config {
	return Config{
		DefaultStrategy:         models.StrategyBestEffort,
		SuccessThreshold:        70,
		VisionFallbackThreshold: 70,
		StrandTimeout:           60 * time.Second,
		RunBudget:               300 * time.Second,
		PatchTimeout:            10 * time.Second,
		MaxImageBytes:           storage.DefaultMaxImageBytes,
		Weights:                 DefaultWeights(),
	}
}

// withDefaults fills zero values so a partially populated Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = d.DefaultStrategy
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.VisionFallbackThreshold <= 0 {
		c.VisionFallbackThreshold = d.VisionFallbackThreshold
	}
	if c.StrandTimeout <= 0 {
		c.StrandTimeout = d.StrandTimeout
	}
	if c.RunBudget <= 0 {
		c.RunBudget = d.RunBudget
	}
	if c.PatchTimeout <= 0 {
		c.PatchTimeout = d.PatchTimeout
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = d.MaxImageBytes
	}
	if len(c.Weights) == 0 {
		c.Weights = d.Weights
	}
	return c
}
