package ocr

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/models"
)

func str(md models.Metadata, f models.Field) string {
	v, _ := md.Get(f)
	return v
}

func TestParseMetadataFromText_ISBN13WithSpaces(t *testing.T) {
	md := ParseMetadataFromText("ISBN-13: 978 0 13 235088 4")

	require.NotNil(t, md.ISBN13)
	assert.Equal(t, "9780132350884", *md.ISBN13)
	assert.Nil(t, md.ISBN10)
}

func TestParseMetadataFromText_ISBNVariants(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		isbn10 string
		isbn13 string
	}{
		{"hyphenated 13", "978-0-13-235088-4", "", "9780132350884"},
		{"labelled 10", "ISBN 0-13-235088-2", "0132350882", ""},
		{"isbn-10 label with x", "ISBN-10: 0-8044-2957-X", "080442957X", ""},
		{"979 prefix", "ISBN: 979-10-90636-07-1", "", "9791090636071"},
		{"lowercase label", "isbn:9780132350884", "", "9780132350884"},
		{"labelled 12 digits", "ISBN: 123456789012", "", ""},
		{"labelled 11 digits", "ISBN 12345678901", "", ""},
		{"labelled 13 digits without prefix", "ISBN: 1234567890123", "", ""},
		{"neighbouring numbers", "Printed 2019 0306406152 5", "0306406152", ""},
		{"label digits never join the number", "ISBN-10 123-45678-9X", "123456789X", ""},
		{"13 digits next to a year", "2021 978-0-13-235088-4", "", "9780132350884"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ParseMetadataFromText(tt.input)
			assert.Equal(t, tt.isbn10, str(md, models.FieldISBN10))
			assert.Equal(t, tt.isbn13, str(md, models.FieldISBN13))
		})
	}
}

func TestParseMetadataFromText_NoISBNInShortNumbers(t *testing.T) {
	md := ParseMetadataFromText("Volume 2\n12345")
	assert.Nil(t, md.ISBN10)
	assert.Nil(t, md.ISBN13)
}

func TestParseLines_FullCover(t *testing.T) {
	lines := []TextLine{
		{Text: "The Art of Resilient Systems", Confidence: 96},
		{Text: "by Jane Doe", Confidence: 94},
		{Text: "ISBN-13: 978-0-13-235088-4", Confidence: 91},
		{Text: "© 2019 Northwind Press", Confidence: 89},
	}

	md := ParseLines(lines, 60)

	assert.Equal(t, "The Art of Resilient Systems", str(md, models.FieldTitle))
	assert.Equal(t, "Jane Doe", str(md, models.FieldAuthor))
	assert.Equal(t, "9780132350884", str(md, models.FieldISBN13))
	assert.Equal(t, "2019", str(md, models.FieldPublishedDate))
	assert.Equal(t, "Northwind Press", str(md, models.FieldPublisher))
	assert.Nil(t, md.Description)
}

func TestParseLines_PublisherLabel(t *testing.T) {
	md := ParseMetadataFromText("Some Title Here\nPublisher: Acme House")
	assert.Equal(t, "Acme House", str(md, models.FieldPublisher))
	assert.Equal(t, "Some Title Here", str(md, models.FieldTitle))
}

func TestParseLines_PublisherKeywordNeedsCopyrightNearby(t *testing.T) {
	md := ParseMetadataFromText("Penguin Books\nA Very Long Title Without Years")
	assert.Nil(t, md.Publisher)

	md = ParseMetadataFromText("A Very Long Title\nPenguin Books\nCopyright 2004")
	assert.Equal(t, "Penguin Books", str(md, models.FieldPublisher))
	assert.Equal(t, "2004", str(md, models.FieldPublishedDate))
}

func TestParseLines_NameLineBecomesAuthor(t *testing.T) {
	md := ParseMetadataFromText("Clean Code\nRobert C. Martin")
	assert.Equal(t, "Clean Code", str(md, models.FieldTitle))
	assert.Equal(t, "Robert C. Martin", str(md, models.FieldAuthor))
}

func TestParseLines_LowConfidenceLineNotTitle(t *testing.T) {
	lines := []TextLine{
		{Text: "A Blurry But Very Long Headline", Confidence: 20},
		{Text: "Short Title", Confidence: 90},
	}
	md := ParseLines(lines, 60)
	assert.Equal(t, "Short Title", str(md, models.FieldTitle))
}

func TestParseLines_NothingRecognized(t *testing.T) {
	md := ParseLines(nil, 60)
	assert.True(t, md.IsEmpty())

	md = ParseMetadataFromText("  \n--\n12")
	assert.True(t, md.IsEmpty())
}

func TestRankCandidates(t *testing.T) {
	lines := []TextLine{
		{Text: "Low", Confidence: 99},
		{Text: "Jane Doe and John Roe", Confidence: 80},
		{Text: "THE   BIG\nTITLE", Confidence: 95},
		{Text: "the big title", Confidence: 70},
		{Text: "Smith, Jones", Confidence: 60},
	}

	c := RankCandidates(lines)

	require.Len(t, c.Titles, 2)
	assert.Equal(t, "Low", c.Titles[0].Value)
	assert.Equal(t, "THE BIG TITLE", c.Titles[1].Value)
	require.Len(t, c.Authors, 2)
	assert.Equal(t, "Jane Doe and John Roe", c.Authors[0].Value)
	assert.Equal(t, "Smith, Jones", c.Authors[1].Value)
}

func TestRankCandidates_TruncatesByRune(t *testing.T) {
	long := strings.Repeat("é", maxCandidateLen+10)
	c := RankCandidates([]TextLine{{Text: long, Confidence: 90}})

	require.Len(t, c.Titles, 1)
	assert.True(t, utf8.ValidString(c.Titles[0].Value))
	assert.Equal(t, maxCandidateLen, utf8.RuneCountInString(c.Titles[0].Value))
}

func TestRankCandidates_CapsAtFive(t *testing.T) {
	var lines []TextLine
	for _, s := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf"} {
		lines = append(lines, TextLine{Text: s, Confidence: 50})
	}
	c := RankCandidates(lines)
	assert.Len(t, c.Titles, 5)
	assert.Empty(t, c.Authors)
}
