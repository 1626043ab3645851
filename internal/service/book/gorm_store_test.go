package book

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// dryRunStore renders statements without a database.
func dryRunStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=bookmeta dbname=bookmeta sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return &GormStore{db: db, logger: logger.NewTestLogger()}
}

func TestPatchUpdates_FillsOnlyWhatIsGiven(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	am := &models.AdvancedMetadata{}

	updates, err := patchUpdates(models.BookPatch{
		FillTitle:        strptr("Clean Code"),
		AdvancedMetadata: am,
		MetadataSource:   models.SourceAutoProcessed,
		LastExtractionAt: &now,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, now, updates["updated_at"])
	assert.Equal(t, now, updates["last_extraction_at"])
	assert.Equal(t, string(models.SourceAutoProcessed), updates["metadata_source"])
	assert.Contains(t, updates, "title")
	assert.NotContains(t, updates, "author")
	assert.NotContains(t, updates, "description")

	data, ok := updates["advanced_metadata"].(datatypes.JSON)
	require.True(t, ok)
	assert.Contains(t, string(data), `"provenance":[]`)
}

func TestGormStore_PatchKeepsUserFields(t *testing.T) {
	s := dryRunStore(t)
	updates, err := patchUpdates(models.BookPatch{
		FillTitle:  strptr("Extracted Title"),
		FillAuthor: strptr("Extracted Author"),
	}, time.Now().UTC())
	require.NoError(t, err)

	stmt := s.patchQuery(context.Background(), "b1", "u1", updates).Statement
	sql := stmt.SQL.String()

	// a non-blank column keeps its value; only blanks take the extracted one
	assert.Contains(t, sql, `"title"=COALESCE(NULLIF(title, ''), $`)
	assert.Contains(t, sql, `"author"=COALESCE(NULLIF(author, ''), $`)
	assert.NotContains(t, sql, `"description"`)
	assert.True(t, strings.HasPrefix(sql, `UPDATE "books" SET`), sql)
	assert.Contains(t, sql, "WHERE book_id = $")
	assert.Contains(t, sql, "AND owner_id = $")

	assert.Contains(t, stmt.Vars, "Extracted Title")
	assert.Contains(t, stmt.Vars, "Extracted Author")
	assert.Contains(t, stmt.Vars, "b1")
	assert.Contains(t, stmt.Vars, "u1")
}
