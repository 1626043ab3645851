// Package filename guesses a title from the uploaded object's name. It is
// the weakest strand and only fills gaps.
package filename

import (
	"context"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/models"
)

// GuessConfidence sits below anything the other strands report.
const GuessConfidence = 20.0

var (
	uuidLike   = regexp.MustCompile(`(?i)^[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}$`)
	hexLike    = regexp.MustCompile(`(?i)^[0-9a-f]{12,}$`)
	cameraLike = regexp.MustCompile(`(?i)^(img|dsc|pxl|photo|image|scan|cover)[\s_-]*\d*$`)
	separators = strings.NewReplacer("_", " ", "-", " ", ".", " ", "+", " ")
)

type Strand struct{}

func NewStrand() *Strand { return &Strand{} }

func (s *Strand) Name() string            { return "filename" }
func (s *Strand) Kind() models.StrandKind { return models.KindFilename }

func (s *Strand) Run(ctx context.Context, in *agent.Input) (*agent.Output, error) {
	title, ok := Guess(in.Image.Key)
	out := &agent.Output{Confidence: models.FieldConfidence{}}
	if !ok {
		out.Detail = "key is not word-like"
		return out, nil
	}
	out.Metadata.Set(models.FieldTitle, title)
	out.Confidence[models.FieldTitle] = GuessConfidence
	return out, nil
}

// Guess turns "covers/u1/the_name_of_the_wind.jpg" into "The Name Of The Wind".
// Generated names (uuids, hashes, camera rolls, digits) are rejected.
func Guess(key string) (string, bool) {
	base := path.Base(key)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "", false
	}
	if uuidLike.MatchString(base) || hexLike.MatchString(base) || cameraLike.MatchString(base) {
		return "", false
	}

	words := strings.Fields(separators.Replace(base))
	var kept []string
	letters := 0
	for _, w := range words {
		hasLetter := false
		for _, r := range w {
			if unicode.IsLetter(r) {
				hasLetter = true
				letters++
			}
		}
		if !hasLetter {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		kept = append(kept, string(runes))
	}
	if len(kept) == 0 || letters < 3 {
		return "", false
	}
	return strings.Join(kept, " "), true
}
