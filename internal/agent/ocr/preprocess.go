package ocr

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Preprocessor transforms an image before recognition.
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

type PreprocessConfig struct {
	MinWidth        int
	DenoiseStrength float64
	Contrast        float64
	SharpenStrength float64
	Binarize        bool
	BinarizeCutoff  uint8
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MinWidth:        1200,
		DenoiseStrength: 0.5,
		Contrast:        20,
		SharpenStrength: 0.5,
	}
}

// Pipeline builds the chain described by cfg.
func Pipeline(cfg PreprocessConfig) []Preprocessor {
	chain := []Preprocessor{
		upscale{minWidth: cfg.MinWidth},
		grayscale{},
	}
	if cfg.DenoiseStrength > 0 {
		chain = append(chain, denoise{sigma: cfg.DenoiseStrength})
	}
	if cfg.Contrast != 0 {
		chain = append(chain, contrast{amount: cfg.Contrast})
	}
	if cfg.SharpenStrength > 0 {
		chain = append(chain, sharpen{sigma: cfg.SharpenStrength})
	}
	if cfg.Binarize {
		chain = append(chain, binarize{cutoff: cfg.BinarizeCutoff})
	}
	return chain
}

func applyPipeline(img image.Image, chain []Preprocessor) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	var err error
	for _, p := range chain {
		img, err = p.Process(img)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, errors.New("preprocessor returned nil image")
		}
	}
	return img, nil
}

// small phone thumbnails recognize poorly
type upscale struct{ minWidth int }

func (p upscale) Process(img image.Image) (image.Image, error) {
	if p.minWidth <= 0 || img.Bounds().Dx() >= p.minWidth {
		return img, nil
	}
	return imaging.Resize(img, p.minWidth, 0, imaging.Lanczos), nil
}

type grayscale struct{}

func (grayscale) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

type denoise struct{ sigma float64 }

func (p denoise) Process(img image.Image) (image.Image, error) {
	return imaging.Blur(img, p.sigma), nil
}

type contrast struct{ amount float64 }

func (p contrast) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, p.amount), nil
}

type sharpen struct{ sigma float64 }

func (p sharpen) Process(img image.Image) (image.Image, error) {
	return imaging.Sharpen(img, p.sigma), nil
}

type binarize struct{ cutoff uint8 }

func (p binarize) Process(img image.Image) (image.Image, error) {
	cutoff := p.cutoff
	if cutoff == 0 {
		cutoff = 128
	}
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := color.GrayModel.Convert(gray.At(x, y)).(color.Gray).Y
			if v > cutoff {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out, nil
}
