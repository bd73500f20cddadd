package directory

import (
	"context"

	"github.com/scholarsorbit/scholarsorbit-backend/internal/models"
	"github.com/scholarsorbit/scholarsorbit-backend/internal/storage"
)

// maxUsers caps the DM sidebar listing regardless of directory size.
const maxUsers = 100

// Directory lists the other known users a caller may start a DM with.
type Directory interface {
	ListOthers(ctx context.Context, userID string) ([]models.User, error)
}

// StoreDirectory serves the directory from the persistence store's user
// records, sorted by name and capped at maxUsers.
type StoreDirectory struct {
	Store storage.Store
}

func (d *StoreDirectory) ListOthers(ctx context.Context, userID string) ([]models.User, error) {
	return d.Store.ListUsersExcept(ctx, userID, maxUsers)
}
