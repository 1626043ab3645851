// Package book persists the user-facing BookRecord.
package book

import (
	"context"

	"github.com/feichai0017/bookmeta/internal/models"
)

// Store is the book record store the pipeline reads and conditionally patches.
// Patch is a single atomic update guarded on owner; fill fields are only
// written where the stored value is empty.
type Store interface {
	CreatePlaceholder(ctx context.Context, ownerID string, ref models.ImageRef) (*models.BookRecord, error)
	Get(ctx context.Context, bookID string) (*models.BookRecord, error)
	Patch(ctx context.Context, bookID, ownerID string, patch models.BookPatch) error
}
