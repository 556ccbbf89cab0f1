package database

import (
	"context"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"nexdb/internal/types"
)

type networkAccessRepository struct {
	db *gorm.DB
}

func NewNetworkAccessRepository(db *gorm.DB) NetworkAccessRepository {
	return &networkAccessRepository{db: db}
}

func (n networkAccessRepository) Save(ctx context.Context, na *types.NetworkAccess) error {
	return n.db.WithContext(ctx).Save(na).Error
}

func (n networkAccessRepository) FindByServerID(ctx context.Context, serverID uuid.UUID) ([]*types.NetworkAccess, error) {
	result := make([]*types.NetworkAccess, 0)
	err := n.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("created_at asc").
		Find(&result).Error
	return result, err
}

// Find returns the whitelist entry of ip on serverID
func (n networkAccessRepository) Find(ctx context.Context, serverID uuid.UUID, ip string) (*types.NetworkAccess, error) {
	na := &types.NetworkAccess{}
	err := n.db.WithContext(ctx).
		Where("server_id = ? AND ip = ?", serverID, ip).
		First(na).Error
	if err != nil {
		return nil, notFound(err, "network access", serverID)
	}
	return na, nil
}

func (n networkAccessRepository) Remove(ctx context.Context, id uuid.UUID) error {
	return n.db.WithContext(ctx).Where("id = ?", id).Delete(&types.NetworkAccess{}).Error
}
