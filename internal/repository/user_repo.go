package repository

import (
	"context"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	var list []models.User
	err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").Find(&list).Error
	return list, err
}

// IsAdmin reports whether the user holds the elevated role. Unknown users are not admins.
func (r *UserRepository) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND role = ?", userID, domain.RoleAdmin).Count(&c).Error
	return c > 0, err
}
