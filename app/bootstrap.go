// app/bootstrap.go
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"Gin_postgres_redis_radio_lending/db"

	"go.uber.org/zap"
)

// BootstrapFirstAdmin 没有管理员时为 BOOTSTRAP_EMAIL 生成一次性邀请链接
func BootstrapFirstAdmin(ctx context.Context, cfg Config, repo *db.Repo, logger *zap.Logger) {
	if cfg.BootstrapEmail == "" {
		return
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		logger.Warn("bootstrap admin check failed", zap.Error(err))
		return
	}
	if n > 0 {
		return // 已经有管理员，跳过
	}

	buf := make([]byte, 16)
	rand.Read(buf)
	token := hex.EncodeToString(buf)

	if _, err := repo.CreateInvite(ctx, cfg.BootstrapEmail, token, time.Now().Add(24*time.Hour), "bootstrap"); err != nil {
		logger.Warn("bootstrap invite failed", zap.Error(err))
		return
	}

	link := fmt.Sprintf("%s/register?inviteToken=%s", cfg.WebOrigin, token)
	logger.Info("no admin found, created a bootstrap invite",
		zap.String("email", cfg.BootstrapEmail),
		zap.String("url", link))
}
