package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
)

// GetProductsByIDs returns the catalog rows whose ids are in ids. Unknown ids
// are simply absent from the result; callers compare lengths.
func GetProductsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Product, error) {
	var out []domain.Product
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// CountProducts returns the number of catalog rows.
func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Count(&n).Error
	return n, err
}

// CreateProducts inserts catalog rows, generating missing ids.
func CreateProducts(ctx context.Context, db *gorm.DB, ps []domain.Product) error {
	now := time.Now().UTC()
	for i := range ps {
		if ps[i].ID == "" {
			ps[i].ID = uuid.NewString()
		}
		ps[i].CreatedAt, ps[i].UpdatedAt = now, now
	}
	return db.WithContext(ctx).Create(&ps).Error
}
