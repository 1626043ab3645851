package app

import (
	"context"
	"fmt"

	"github.com/feichai0017/bookmeta/config"
	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/agent/catalog"
	"github.com/feichai0017/bookmeta/internal/agent/filename"
	"github.com/feichai0017/bookmeta/internal/agent/ocr"
	"github.com/feichai0017/bookmeta/internal/agent/vision"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/extraction"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// Orchestrator builds the strand registry and the orchestrator on top of a.
func (a *App) Orchestrator(ctx context.Context) (*extraction.Orchestrator, error) {
	registry, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Strands registered", logger.Strings("strands", registry.Names()))

	return extraction.NewOrchestrator(extraction.Deps{
		Registry:    registry,
		Storage:     a.Storage,
		Books:       a.Books,
		DeadLetters: a.DeadLetters,
		Publisher:   a.Notifier,
	}, ExtractionConfig(a.Pipeline), a.Logger.Named("orchestrator"))
}

// ExtractionConfig converts the pipeline config into orchestrator policy.
func ExtractionConfig(p *config.PipelineConfig) extraction.Config {
	strategy, _ := models.ParseStrategy(p.DefaultStrategy)
	cfg := extraction.Config{
		DefaultStrategy:         strategy,
		SuccessThreshold:        p.SuccessThreshold,
		VisionFallbackThreshold: p.VisionFallbackThreshold,
		StrandTimeout:           p.StrandTimeout,
		RunBudget:               p.RunBudget,
		MaxImageBytes:           p.MaxImageBytes,
		FilenameStrand:          p.FilenameStrand,
	}
	if len(p.Weights) > 0 {
		cfg.Weights = extraction.Weights{}
		for name, w := range p.Weights {
			cfg.Weights[models.Field(name)] = w
		}
	}
	return cfg
}

func (a *App) registry(ctx context.Context) (*agent.Registry, error) {
	policy := agent.NetworkPolicy{AllowExternalCalls: a.Pipeline.AllowExternalCalls}
	registry := agent.NewRegistry(a.Logger.Named("registry"))

	extractor, err := a.ocrExtractor(ctx)
	if err != nil {
		return nil, err
	}
	oc := config.GetOCRConfig()
	if err := registry.Register(ocr.NewStrand(ocr.WithPolicy(extractor, policy), oc.MinLineConfidence, a.Logger.Named("ocr"))); err != nil {
		return nil, err
	}

	analyzer, err := a.visionAnalyzer(ctx, policy)
	if err != nil {
		return nil, err
	}
	for _, m := range a.Pipeline.VisionModels {
		model := vision.Model{ID: m.ID, Provider: m.Provider, BaseRate: m.BaseRate, Tier: m.Tier}
		analyzer.AddModel(model)
		if err := registry.Register(vision.NewStrand(analyzer, model)); err != nil {
			return nil, err
		}
	}

	client, err := a.catalogClient(ctx, policy)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(catalog.NewStrand(client)); err != nil {
		return nil, err
	}

	if err := registry.Register(filename.NewStrand()); err != nil {
		return nil, err
	}
	return registry, nil
}

func (a *App) ocrExtractor(ctx context.Context) (ocr.Extractor, error) {
	oc := config.GetOCRConfig()
	switch oc.Backend {
	case "tesseract":
		tc := ocr.DefaultTesseractConfig()
		tc.Languages = oc.Languages
		return ocr.NewTesseractExtractor(tc, a.Logger.Named("tesseract")), nil
	case "textract", "":
		tc := config.GetTextractConfig()
		return ocr.NewTextractExtractor(ctx, &ocr.TextractConfig{
			Region:    tc.Region,
			AccessKey: tc.AccessKey,
			SecretKey: tc.SecretKey,
			Endpoint:  tc.Endpoint,
		}, a.Logger.Named("textract"))
	default:
		return nil, fmt.Errorf("unsupported OCR backend: %s", oc.Backend)
	}
}

// visionAnalyzer registers a backend for every provider some model names.
func (a *App) visionAnalyzer(ctx context.Context, policy agent.NetworkPolicy) (*vision.Analyzer, error) {
	vc := config.GetVisionConfig()
	analyzer := vision.NewAnalyzer(policy, a.Logger.Named("vision"))

	providers := map[string]bool{}
	for _, m := range a.Pipeline.VisionModels {
		providers[m.Provider] = true
	}

	for provider := range providers {
		switch provider {
		case "bedrock":
			b, err := vision.NewBedrockBackend(ctx, bedrockConfig(vc))
			if err != nil {
				return nil, err
			}
			analyzer.RegisterBackend(provider, b)
		case "gemini":
			b, err := vision.NewGeminiBackend(ctx, vc.GeminiAPIKey, float32(vc.GeminiTemperature))
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, b.Close)
			analyzer.RegisterBackend(provider, b)
		case "openai":
			analyzer.RegisterBackend(provider, vision.NewOpenAIBackend(vision.OpenAIConfig{
				BaseURL: vc.OpenAIBaseURL,
				APIKey:  vc.OpenAIAPIKey,
				Timeout: vc.CallTimeout,
			}))
		case "ollama":
			b := vision.NewOllamaBackend(&vision.OllamaConfig{
				Endpoint:    vc.OllamaEndpoint,
				MaxPoolSize: vc.OllamaPoolSize,
				Timeout:     vc.CallTimeout,
			})
			a.closers = append(a.closers, b.Close)
			analyzer.RegisterBackend(provider, b)
		default:
			return nil, fmt.Errorf("unsupported vision provider: %s", provider)
		}
	}
	return analyzer, nil
}

func (a *App) catalogClient(ctx context.Context, policy agent.NetworkPolicy) (*catalog.Client, error) {
	cc := config.GetCatalogConfig()
	var secondary catalog.Provider
	if cc.GoogleBooksAPIKey != "" {
		gb, err := catalog.NewGoogleBooks(ctx, cc.GoogleBooksAPIKey)
		if err != nil {
			return nil, err
		}
		secondary = gb
	}
	return catalog.NewClient(
		catalog.NewOpenLibrary(cc.OpenLibraryURL),
		secondary,
		catalog.NewRedisCache(a.Redis),
		policy,
		catalog.ClientConfig{TTL: cc.CacheTTL, CallTimeout: cc.CallTimeout},
		a.Logger.Named("catalog"),
	), nil
}

// bedrockConfig falls back to the default AWS credential chain when no
// Bedrock keys are set.
func bedrockConfig(vc *config.VisionConfig) *vision.BedrockConfig {
	return &vision.BedrockConfig{
		Region:    vc.BedrockRegion,
		AccessKey: vc.BedrockAccessKey,
		SecretKey: vc.BedrockSecretKey,
		MaxTokens: vc.BedrockMaxTokens,
	}
}
