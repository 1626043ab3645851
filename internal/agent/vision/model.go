// Package vision asks multimodal models to read bibliographic fields off a
// cover image.
package vision

import (
	"context"
)

// LargeImageBytes is the size above which the cost estimate is surcharged.
const LargeImageBytes = 1 << 20

const largeImageMultiplier = 1.5

// Model describes a configured vision model. BaseRate is the estimated cost
// of one call in arbitrary units.
type Model struct {
	ID       string  `yaml:"id" json:"id"`
	Provider string  `yaml:"provider" json:"provider"`
	BaseRate float64 `yaml:"baseRate" json:"baseRate"`
	Tier     string  `yaml:"tier" json:"tier"`
}

// EstimateCost returns the base rate, surcharged for large images.
func EstimateCost(m Model, imageBytes int) float64 {
	if imageBytes > LargeImageBytes {
		return m.BaseRate * largeImageMultiplier
	}
	return m.BaseRate
}

// Backend sends one image and prompt to a provider and returns the raw text answer.
type Backend interface {
	Invoke(ctx context.Context, modelID string, image []byte, mimeType, prompt string) (string, error)
}

// Prompt asks for a strict JSON object so parseResponse can take the fast path.
const Prompt = `You are reading the front cover, spine or copyright page of a book.
Extract the bibliographic details that are actually printed on the image.
Respond with a single JSON object and nothing else, using these keys:
{"title": string|null, "author": string|null, "isbn10": string|null, "isbn13": string|null,
 "publisher": string|null, "publishedDate": string|null, "description": string|null,
 "confidence": {"<key>": number between 0 and 1, ...}}
Give a confidence for every key you filled in, rating how clearly it is printed.
Use null for anything you cannot read. Do not guess ISBNs.`
