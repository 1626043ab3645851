package ocr

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/bookmeta/internal/models"
)

var (
	isbnGroup        = regexp.MustCompile(`(?i)\d+x?|\bx\b`)
	yearPattern      = regexp.MustCompile(`(?i)(?:©|\(c\)|copyright)\s*(?:©\s*)?((?:1[5-9]|20)\d{2})\b`)
	bareYearPattern  = regexp.MustCompile(`\b(?:1[5-9]|20)\d{2}\b`)
	copyrightPattern = regexp.MustCompile(`(?i)©|\(c\)|\bcopyright\b`)
	publisherLabel   = regexp.MustCompile(`(?i)^\s*publisher\s*:\s*(.+)$`)
	publisherKeyword = regexp.MustCompile(`(?i)\b(press|publications|publishing|publishers|books)\b`)
	byLinePattern    = regexp.MustCompile(`(?i)^\s*by\s+(.+)$`)
	namePattern      = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]*\.?)?\s+[A-Z][a-z]+(?:-[A-Z][a-z]+)?$`)
	publisherNoise   = regexp.MustCompile(`(?i)©|\(c\)|\bcopyright\b|\ball rights reserved\b|\b(?:1[5-9]|20)\d{2}\b`)
)

const (
	maxCandidates     = 5
	maxCandidateLen   = 200
	authorHintMaxLen  = 80
	candidatePoolSize = 20
	minTitleLen       = 3
)

// ParseMetadataFromText extracts fields from raw OCR text, treating every
// line as fully confident.
func ParseMetadataFromText(raw string) models.Metadata {
	var lines []TextLine
	for _, l := range strings.Split(raw, "\n") {
		lines = append(lines, TextLine{Text: l, Confidence: 100})
	}
	return ParseLines(lines, 0)
}

// ParseLines applies the cover heuristics to recognized lines. Only lines at
// or above minConfidence are considered for the title; unmatched fields stay nil.
func ParseLines(lines []TextLine, minConfidence float64) models.Metadata {
	var md models.Metadata
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = normalizeSpace(l.Text)
	}

	used := make(map[int]bool)

	for i, t := range texts {
		if isbn10, isbn13, ok := findISBN(t); ok {
			if isbn13 != "" && md.ISBN13 == nil {
				md.Set(models.FieldISBN13, isbn13)
			}
			if isbn10 != "" && md.ISBN10 == nil {
				md.Set(models.FieldISBN10, isbn10)
			}
			used[i] = true
		}
	}

	for i, t := range texts {
		if m := yearPattern.FindStringSubmatch(t); m != nil {
			if md.PublishedDate == nil {
				md.Set(models.FieldPublishedDate, m[1])
			}
			used[i] = true
		}
	}

	if idx, name := findPublisher(texts); idx >= 0 {
		md.Set(models.FieldPublisher, name)
		used[idx] = true
	}

	authorIdx := -1
	for i, t := range texts {
		if used[i] {
			continue
		}
		if m := byLinePattern.FindStringSubmatch(t); m != nil {
			name := strings.Trim(strings.TrimSpace(m[1]), ".,;:")
			if name != "" {
				md.Set(models.FieldAuthor, name)
				authorIdx = i
				break
			}
		}
	}
	if authorIdx >= 0 {
		used[authorIdx] = true
	}

	titleIdx := pickTitle(lines, texts, used, minConfidence, authorIdx < 0)
	if titleIdx >= 0 {
		md.Set(models.FieldTitle, texts[titleIdx])
		used[titleIdx] = true
	}

	if authorIdx < 0 {
		for i, t := range texts {
			if used[i] || i == titleIdx {
				continue
			}
			if namePattern.MatchString(t) {
				md.Set(models.FieldAuthor, t)
				break
			}
		}
	}

	return md
}

// findISBN looks for runs of digit groups, joined by single spaces or hyphens,
// that reduce to 13 digits starting 978 or 979, or else to exactly 10
// characters with an optional X check digit. Every group is tried as a start,
// so a neighbouring number never hides an ISBN next to it.
func findISBN(line string) (isbn10, isbn13 string, ok bool) {
	groups := isbnGroup.FindAllStringIndex(line, -1)
	if d := scanISBN(line, groups, isISBN13); d != "" {
		return "", d, true
	}
	if d := scanISBN(line, groups, isISBN10); d != "" {
		return d, "", true
	}
	return "", "", false
}

func scanISBN(line string, groups [][]int, match func(string) bool) string {
	for i := range groups {
		if partOfWord(line, groups[i][0]) {
			continue
		}
		var b strings.Builder
		for j := i; j < len(groups); j++ {
			if j > i {
				if sep := line[groups[j-1][1]:groups[j][0]]; sep != " " && sep != "-" {
					break
				}
			}
			b.WriteString(strings.ToUpper(line[groups[j][0]:groups[j][1]]))
			digits := b.String()
			if len(digits) > 13 {
				break
			}
			if match(digits) {
				return digits
			}
			if strings.HasSuffix(digits, "X") {
				break
			}
		}
	}
	return ""
}

func isISBN13(d string) bool {
	return len(d) == 13 && isDigits(d) && (strings.HasPrefix(d, "978") || strings.HasPrefix(d, "979"))
}

func isISBN10(d string) bool {
	return len(d) == 10 && isDigits(d[:9]) && (isDigit(d[9]) || d[9] == 'X')
}

// partOfWord reports whether the group at start is glued to a preceding word,
// such as the 13 in "ISBN-13".
func partOfWord(line string, start int) bool {
	prefix := strings.ToLower(line[:start])
	if strings.HasSuffix(prefix, "isbn-") {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(prefix)
	return r != utf8.RuneError && unicode.IsLetter(r)
}

func findPublisher(texts []string) (int, string) {
	for i, t := range texts {
		if m := publisherLabel.FindStringSubmatch(t); m != nil {
			if name := cleanPublisher(m[1]); name != "" {
				return i, name
			}
		}
	}
	for i, t := range texts {
		if !publisherKeyword.MatchString(t) {
			continue
		}
		if !nearCopyright(texts, i) {
			continue
		}
		if name := cleanPublisher(t); name != "" {
			return i, name
		}
	}
	return -1, ""
}

func nearCopyright(texts []string, i int) bool {
	for j := i - 1; j <= i+1; j++ {
		if j < 0 || j >= len(texts) {
			continue
		}
		if copyrightPattern.MatchString(texts[j]) || bareYearPattern.MatchString(texts[j]) {
			return true
		}
	}
	return false
}

func cleanPublisher(s string) string {
	s = publisherNoise.ReplaceAllString(s, " ")
	s = normalizeSpace(s)
	return strings.Trim(s, " .,;:-")
}

func pickTitle(lines []TextLine, texts []string, used map[int]bool, minConfidence float64, noByLine bool) int {
	var eligible []int
	for i, t := range texts {
		if used[i] || lines[i].Confidence < minConfidence {
			continue
		}
		if len(t) < minTitleLen || !hasLetter(t) {
			continue
		}
		if copyrightPattern.MatchString(t) || publisherLabel.MatchString(t) {
			continue
		}
		eligible = append(eligible, i)
	}
	if len(eligible) == 0 {
		return -1
	}

	var preferred []int
	for _, i := range eligible {
		if noByLine && namePattern.MatchString(texts[i]) {
			continue
		}
		preferred = append(preferred, i)
	}
	if len(preferred) == 0 {
		// only name-like lines left; covers put the title first
		return eligible[0]
	}

	best := preferred[0]
	for _, i := range preferred[1:] {
		if len(texts[i]) > len(texts[best]) {
			best = i
		}
	}
	return best
}

// RankCandidates ranks lines by confidence weighted by area and splits them
// into title and author guesses.
func RankCandidates(lines []TextLine) *models.Candidates {
	ranked := append([]TextLine(nil), lines...)
	score := func(l TextLine) float64 {
		return l.Confidence * (1 + l.Area/10000)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	if len(ranked) > candidatePoolSize {
		ranked = ranked[:candidatePoolSize]
	}

	out := &models.Candidates{Titles: []models.Candidate{}, Authors: []models.Candidate{}}
	seenTitle := map[string]bool{}
	seenAuthor := map[string]bool{}
	for _, l := range ranked {
		t := normalizeSpace(l.Text)
		if r := []rune(t); len(r) > maxCandidateLen {
			t = strings.TrimSpace(string(r[:maxCandidateLen]))
		}
		if len(t) < minTitleLen {
			continue
		}
		c := models.Candidate{Value: t, Confidence: math.Round(l.Confidence*1000) / 1000}
		key := strings.ToLower(t)
		if looksLikeAuthors(t) {
			if !seenAuthor[key] && len(out.Authors) < maxCandidates {
				seenAuthor[key] = true
				out.Authors = append(out.Authors, c)
			}
			continue
		}
		if !seenTitle[key] && len(out.Titles) < maxCandidates {
			seenTitle[key] = true
			out.Titles = append(out.Titles, c)
		}
	}
	return out
}

func looksLikeAuthors(t string) bool {
	if len(t) >= authorHintMaxLen {
		return false
	}
	return strings.Contains(t, ",") || strings.Contains(t, " and ") || strings.Contains(t, " & ")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
