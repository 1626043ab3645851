package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/bookmeta/config"
	"github.com/feichai0017/bookmeta/internal/models"
)

func TestExtractionConfig(t *testing.T) {
	p := config.DefaultPipelineConfig()
	p.DefaultStrategy = "cost-optimized"
	p.StrandTimeout = 5 * time.Second
	p.FilenameStrand = true

	cfg := ExtractionConfig(p)
	assert.Equal(t, models.StrategyCostOptimized, cfg.DefaultStrategy)
	assert.Equal(t, 5*time.Second, cfg.StrandTimeout)
	assert.Equal(t, 300*time.Second, cfg.RunBudget)
	assert.True(t, cfg.FilenameStrand)
	assert.Equal(t, 0.30, cfg.Weights[models.FieldTitle])
	assert.Equal(t, 0.07, cfg.Weights[models.FieldPublishedDate])
}

func TestExtractionConfig_UnknownStrategyFallsBack(t *testing.T) {
	p := config.DefaultPipelineConfig()
	p.DefaultStrategy = "whatever"
	p.Weights = nil

	cfg := ExtractionConfig(p)
	assert.Equal(t, models.StrategyBestEffort, cfg.DefaultStrategy)
	assert.Nil(t, cfg.Weights)
}

func TestBedrockConfig_UsesItsOwnCredentials(t *testing.T) {
	vc := &config.VisionConfig{
		BedrockRegion:    "us-west-2",
		BedrockAccessKey: "bedrock-key",
		BedrockSecretKey: "bedrock-secret",
		BedrockMaxTokens: 512,
	}

	bc := bedrockConfig(vc)
	assert.Equal(t, "us-west-2", bc.Region)
	assert.Equal(t, "bedrock-key", bc.AccessKey)
	assert.Equal(t, "bedrock-secret", bc.SecretKey)
	assert.Equal(t, 512, bc.MaxTokens)

	assert.Empty(t, bedrockConfig(&config.VisionConfig{}).AccessKey)
}
