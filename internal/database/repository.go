package database

import (
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	target  *models.TargetModel
	entry   *models.EntryModel
	premium *models.PremiumModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		target:  models.NewTarget(db, logger),
		entry:   models.NewEntry(db, logger),
		premium: models.NewPremium(db, logger),
	}
}

// Target returns the target model repository.
func (r *Repository) Target() *models.TargetModel {
	return r.target
}

// Entry returns the starred entry model repository.
func (r *Repository) Entry() *models.EntryModel {
	return r.entry
}

// Premium returns the premium model repository.
func (r *Repository) Premium() *models.PremiumModel {
	return r.premium
}
