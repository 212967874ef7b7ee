// db/repo_device.go
package db

import (
	"Gin_postgres_redis_radio_lending/models"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

func (r *Repo) CreateDevice(ctx context.Context, d *models.Device) error {
	if d.Status == "" {
		d.Status = models.DeviceAvailable
	}
	if err := r.DB.WithContext(ctx).Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &ConflictError{Reason: "serial already exists"}
		}
		return storageErr("create device", err)
	}
	return nil
}

func (r *Repo) FindDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	if err := r.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "device", ID: id}
		}
		return nil, storageErr("find device", err)
	}
	return &d, nil
}

// UpdateDeviceMeta 只改名称/备注，状态走 SetDeviceStatus
func (r *Repo) UpdateDeviceMeta(ctx context.Context, id, name, notes string) (*models.Device, error) {
	res := r.DB.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "notes": notes})
	if res.Error != nil {
		return nil, storageErr("update device", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Entity: "device", ID: id}
	}
	return r.FindDeviceByID(ctx, id)
}

// SetDeviceStatus 管理端状态覆盖（AVAILABLE/DEFECT/MAINTENANCE）。
// ON_LOAN 永远不从这里进出：外借中的设备先归还再改状态。
// 与借还协议同款条件更新，防止覆盖并发中的借出。
func (r *Repo) SetDeviceStatus(ctx context.Context, id string, target models.DeviceStatus) (*models.Device, error) {
	allowed := false
	for _, s := range models.AdminStatuses() {
		if s == target {
			allowed = true
		}
	}
	if !allowed {
		return nil, &ValidationError{Field: "status", Msg: "must be AVAILABLE, DEFECT or MAINTENANCE"}
	}

	var out models.Device
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Device
		if err := tx.First(&d, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "device", ID: id}
			}
			return err
		}
		if d.Status == models.DeviceOnLoan {
			return &ConflictError{Reason: ReasonDeviceHasOpenLoan}
		}

		res := tx.Model(&models.Device{}).
			Where("id = ? AND status <> ?", id, models.DeviceOnLoan).
			Updates(map[string]interface{}{"status": target, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 读后被并发借出抢占
			return &ConflictError{Reason: ReasonDeviceHasOpenLoan}
		}
		d.Status = target
		out = d
		return nil
	})
	if err != nil {
		return nil, storageErr("set device status", err)
	}
	return &out, nil
}

// DeleteDevice 有未归还借条的设备不可删；历史借条保留
func (r *Repo) DeleteDevice(ctx context.Context, id string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Device
		if err := tx.First(&d, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "device", ID: id}
			}
			return err
		}
		var n int64
		if err := tx.Model(&models.Loan{}).
			Where("device_id = ? AND returned_at IS NULL", id).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 || d.Status == models.DeviceOnLoan {
			return &ConflictError{Reason: ReasonDeviceHasOpenLoan}
		}
		// 删除同样走条件写：读和删之间被并发借出的话 0 行命中
		res := tx.Where("id = ? AND status <> ?", id, models.DeviceOnLoan).
			Delete(&models.Device{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: ReasonDeviceHasOpenLoan}
		}
		return nil
	})
	if err != nil {
		return storageErr("delete device", err)
	}
	return nil
}

// 管理端列表：设备 + 当前借条（部分唯一索引保证最多一条 open loan，
// 直接 LEFT JOIN 即可）

type DeviceRow struct {
	ID        string              `json:"id"`
	Serial    string              `json:"serial"`
	Name      string              `json:"name"`
	Status    models.DeviceStatus `json:"status"`
	Notes     string              `json:"notes,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`

	LoanID       *string    `json:"loanId,omitempty"`
	BorrowerName *string    `json:"borrowerName,omitempty"`
	BorrowedAt   *time.Time `json:"borrowedAt,omitempty"`
}

type DeviceQuery struct {
	Q      string // 模糊搜索：serial/name
	Status string // "", "AVAILABLE", "ON_LOAN", "DEFECT", "MAINTENANCE"
	Page   int
	Size   int
}

type PagedDevices struct {
	Total int64       `json:"total"`
	Items []DeviceRow `json:"items"`
}

func (r *Repo) ListDevicesWithOpenLoan(ctx context.Context, q DeviceQuery) (*PagedDevices, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size

	filters := func(tx *gorm.DB) *gorm.DB {
		if s := strings.TrimSpace(q.Q); s != "" {
			pat := "%" + strings.ToLower(s) + "%"
			tx = tx.Where("LOWER(d.serial) LIKE ? OR LOWER(d.name) LIKE ?", pat, pat)
		}
		if q.Status != "" {
			tx = tx.Where("d.status = ?", q.Status)
		}
		return tx
	}

	var total int64
	if err := filters(r.DB.WithContext(ctx).Table(models.DeviceTable + " d")).
		Count(&total).Error; err != nil {
		return nil, storageErr("count devices", err)
	}

	var rows []DeviceRow
	if err := filters(r.DB.WithContext(ctx).Table(models.DeviceTable+" d")).
		Select(`
			d.id, d.serial, d.name, d.status, d.notes, d.created_at, d.updated_at,
			ol.id            AS loan_id,
			ol.borrower_name AS borrower_name,
			ol.borrowed_at   AS borrowed_at
		`).
		Joins("LEFT JOIN " + models.LoanTable + " ol ON ol.device_id = d.id AND ol.returned_at IS NULL").
		Order("d.created_at DESC").
		Offset(offset).
		Limit(q.Size).
		Scan(&rows).Error; err != nil {
		return nil, storageErr("list devices", err)
	}

	return &PagedDevices{Total: total, Items: rows}, nil
}

// 仪表盘汇总

type DashboardCounts struct {
	Devices     int64 `json:"devices"`
	Available   int64 `json:"available"`
	OnLoan      int64 `json:"onLoan"`
	Defect      int64 `json:"defect"`
	Maintenance int64 `json:"maintenance"`
	OpenLoans   int64 `json:"openLoans"`
}

func (r *Repo) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	var rows []struct {
		Status models.DeviceStatus
		N      int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.Device{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, storageErr("dashboard", err)
	}

	out := &DashboardCounts{}
	for _, row := range rows {
		out.Devices += row.N
		switch row.Status {
		case models.DeviceAvailable:
			out.Available = row.N
		case models.DeviceOnLoan:
			out.OnLoan = row.N
		case models.DeviceDefect:
			out.Defect = row.N
		case models.DeviceMaintenance:
			out.Maintenance = row.N
		}
	}

	open, err := r.CountOpenLoans(ctx)
	if err != nil {
		return nil, err
	}
	out.OpenLoans = open
	return out, nil
}
