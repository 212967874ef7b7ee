package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_radio_lending/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func (r *Repo) CreateInvite(ctx context.Context, email, token string, expiresAt time.Time, createdBy string) (*models.Invite, error) {
	inv := &models.Invite{Email: email, Token: token, ExpiresAt: expiresAt, CreatedBy: createdBy}
	if err := r.DB.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, storageErr("create invite", err)
	}
	return inv, nil
}

func (r *Repo) GetInviteByToken(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "invite", ID: token}
		}
		return nil, storageErr("get invite", err)
	}
	return &inv, nil
}

// consumeInvite 一次性消费：条件更新 used_at IS NULL，
// 同一 token 并发注册只有一个能成功
func consumeInvite(tx *gorm.DB, token string) error {
	now := time.Now().UTC()
	res := tx.Model(&models.Invite{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Update("used_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Reason: "invite expired or already used"}
	}
	return nil
}

// RegisterWithInvite 消费 token 和建号放同一事务：
// 建号失败（用户名重复等）整体回滚，token 不被白烧
func (r *Repo) RegisterWithInvite(ctx context.Context, token, id, username, displayName, password string, isAdmin bool) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, storageErr("hash password", err)
	}
	u := &models.User{
		ID:           id,
		Username:     strings.ToLower(strings.TrimSpace(username)),
		DisplayName:  displayName,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := consumeInvite(tx, token); err != nil {
			return err
		}
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Reason: "username already exists"}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("register with invite", err)
	}
	return u, nil
}
