package db

import (
	"Gin_postgres_redis_radio_lending/models"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AppendAudit 业务事务提交之后调用；失败由调用方记日志，不回滚业务
func (r *Repo) AppendAudit(ctx context.Context, action string, deviceID, loanID *string, actorID, actorUsername string, detail *string) (*models.AuditLog, error) {
	entry := &models.AuditLog{
		ID:            uuid.NewString(),
		Action:        action,
		DeviceID:      deviceID,
		LoanID:        loanID,
		ActorID:       actorID,
		ActorUsername: actorUsername,
		Detail:        detail,
	}
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

type PagedAudit struct {
	Total int64             `json:"total"`
	Items []models.AuditLog `json:"items"`
}

func (r *Repo) ListAudit(ctx context.Context, deviceID string, page, size int) (*PagedAudit, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}

	tx := r.DB.WithContext(ctx).Model(&models.AuditLog{})
	if deviceID != "" {
		tx = tx.Where("device_id = ?", deviceID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, storageErr("count audit", err)
	}

	var items []models.AuditLog
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error; err != nil {
		return nil, storageErr("list audit", err)
	}
	return &PagedAudit{Total: total, Items: items}, nil
}
