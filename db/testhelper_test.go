package db

import (
	"context"
	"path/filepath"
	"testing"

	"Gin_postgres_redis_radio_lending/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestRepo 用文件型 sqlite 跑仓库层测试；MaxOpenConns(1)
// 串行化并发事务，条件更新的胜负判定和生产库一致。
func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(gdb))
	return NewRepo(gdb)
}

func seedDevice(t *testing.T, r *Repo, status models.DeviceStatus) *models.Device {
	t.Helper()
	d := &models.Device{
		ID:     uuid.NewString(),
		Serial: "RD-" + uuid.NewString()[:8],
		Name:   "Handheld radio",
		Status: status,
	}
	require.NoError(t, r.DB.Create(d).Error)
	return d
}

func countLoans(t *testing.T, r *Repo, deviceID string, openOnly bool) int64 {
	t.Helper()
	q := r.DB.Model(&models.Loan{}).Where("device_id = ?", deviceID)
	if openOnly {
		q = q.Where("returned_at IS NULL")
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

func reloadDevice(t *testing.T, r *Repo, id string) *models.Device {
	t.Helper()
	d, err := r.FindDeviceByID(context.Background(), id)
	require.NoError(t, err)
	return d
}
