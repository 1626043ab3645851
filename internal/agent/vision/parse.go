package vision

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/feichai0017/bookmeta/internal/models"
)

const defaultTextConfidence = 50.0

type jsonAnswer struct {
	Title         *string         `json:"title"`
	Author        interface{}     `json:"author"`
	ISBN10        *string         `json:"isbn10"`
	ISBN13        *string         `json:"isbn13"`
	Publisher     *string         `json:"publisher"`
	PublishedDate interface{}     `json:"publishedDate"`
	Description   *string         `json:"description"`
	Confidence    json.RawMessage `json:"confidence"`
}

// parseResponse never fails: a JSON object is preferred, then a permissive
// "Label: value" scan. Every populated field gets a confidence on a 0..100
// scale, its own when the model gave one, else the overall or default value.
func parseResponse(raw string) (models.Metadata, models.FieldConfidence) {
	text := stripFences(raw)
	if md, conf, ok := parseJSON(text); ok {
		return md, conf
	}
	md := parseLabels(text)
	return md, fieldConfidence(md, nil, defaultTextConfidence)
}

func fieldConfidence(md models.Metadata, perField map[models.Field]float64, fallback float64) models.FieldConfidence {
	conf := models.FieldConfidence{}
	for _, f := range md.Populated() {
		if c, ok := perField[f]; ok {
			conf[f] = c
			continue
		}
		conf[f] = fallback
	}
	return conf
}

// parseConfidence accepts a single number or an object keyed by field name.
func parseConfidence(raw json.RawMessage) (map[models.Field]float64, float64) {
	fallback := defaultTextConfidence
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fallback
	}
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return nil, normalizeConfidence(scalar)
	}
	var byName map[string]interface{}
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fallback
	}
	perField := make(map[models.Field]float64, len(byName))
	for name, v := range byName {
		c, ok := v.(float64)
		if !ok {
			continue
		}
		if strings.EqualFold(name, "overall") {
			fallback = normalizeConfidence(c)
			continue
		}
		if f, known := labelFields[strings.ToLower(name)]; known {
			perField[f] = normalizeConfidence(c)
		}
	}
	return perField, fallback
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseJSON(s string) (models.Metadata, models.FieldConfidence, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return models.Metadata{}, nil, false
	}

	var a jsonAnswer
	if err := json.Unmarshal([]byte(s[start:end+1]), &a); err != nil {
		return models.Metadata{}, nil, false
	}

	var md models.Metadata
	setPtr := func(f models.Field, v *string) {
		if v != nil {
			md.Set(f, *v)
		}
	}
	setPtr(models.FieldTitle, a.Title)
	md.Set(models.FieldAuthor, flatten(a.Author))
	setPtr(models.FieldISBN10, a.ISBN10)
	setPtr(models.FieldISBN13, a.ISBN13)
	setPtr(models.FieldPublisher, a.Publisher)
	md.Set(models.FieldPublishedDate, flatten(a.PublishedDate))
	setPtr(models.FieldDescription, a.Description)
	normalizeISBNs(&md)

	perField, fallback := parseConfidence(a.Confidence)
	return md, fieldConfidence(md, perField, fallback), true
}

// flatten accepts strings, numbers (years) and author arrays.
func flatten(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func normalizeConfidence(c float64) float64 {
	if c <= 1 {
		c *= 100
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

var labelFields = map[string]models.Field{
	"title":          models.FieldTitle,
	"author":         models.FieldAuthor,
	"authors":        models.FieldAuthor,
	"isbn10":         models.FieldISBN10,
	"isbn-10":        models.FieldISBN10,
	"isbn13":         models.FieldISBN13,
	"isbn-13":        models.FieldISBN13,
	"isbn":           models.FieldISBN13,
	"publisher":      models.FieldPublisher,
	"published":      models.FieldPublishedDate,
	"published date": models.FieldPublishedDate,
	"publisheddate":  models.FieldPublishedDate,
	"date":           models.FieldPublishedDate,
	"year":           models.FieldPublishedDate,
	"description":    models.FieldDescription,
}

func parseLabels(s string) models.Metadata {
	var md models.Metadata
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.Trim(strings.TrimSpace(label), `*"`))
		f, known := labelFields[label]
		if !known {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'*`)
		if value == "" || strings.EqualFold(value, "null") || strings.EqualFold(value, "unknown") || strings.EqualFold(value, "n/a") {
			continue
		}
		if _, set := md.Get(f); !set {
			md.Set(f, value)
		}
	}
	normalizeISBNs(&md)
	return md
}

// normalizeISBNs strips separators and moves a 10-digit value labelled
// as ISBN-13 to the right field. Anything that is not a plausible ISBN is dropped.
func normalizeISBNs(md *models.Metadata) {
	var ten, thirteen string
	for _, f := range []models.Field{models.FieldISBN10, models.FieldISBN13} {
		v, ok := md.Get(f)
		if !ok {
			continue
		}
		digits := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(v))
		switch {
		case len(digits) == 13 && isNumeric(digits):
			thirteen = digits
		case len(digits) == 10 && isNumeric(digits[:9]) && (isNumeric(digits[9:]) || digits[9] == 'X'):
			ten = digits
		}
	}
	md.Set(models.FieldISBN10, ten)
	md.Set(models.FieldISBN13, thirteen)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
