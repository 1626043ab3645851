package config

import (
	"sync"
)

var (
	textractOnce   sync.Once
	textractConfig *TextractConfig
	ocrOnce        sync.Once
	ocrConfig      *OCRConfig
)

type TextractConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// OCRConfig selects the OCR backend: "textract" or "tesseract".
type OCRConfig struct {
	Backend           string
	Languages         []string
	MinLineConfidence float64
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		loadEnv()
		textractConfig = &TextractConfig{
			Region:    getEnv("AWS_REGION", "us-east-1"),
			Endpoint:  getEnv("AWS_TEXTRACT_ENDPOINT", ""),
			AccessKey: getEnv("AWS_ACCESS_KEY", ""),
			SecretKey: getEnv("AWS_SECRET_KEY", ""),
		}
	})
	return textractConfig
}

func GetOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		loadEnv()
		ocrConfig = &OCRConfig{
			Backend:           getEnv("OCR_BACKEND", "textract"),
			Languages:         getList("OCR_LANGUAGES", []string{"eng"}),
			MinLineConfidence: getFloat("OCR_MIN_LINE_CONFIDENCE", 60),
		}
	})
	return ocrConfig
}
