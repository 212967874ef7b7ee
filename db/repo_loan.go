// db/repo_loan.go
package db

import (
	"Gin_postgres_redis_radio_lending/models"
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxBorrowerLen = 100
	maxNoteLen     = 500
)

func conflictForStatus(s models.DeviceStatus) *ConflictError {
	switch s {
	case models.DeviceDefect:
		return &ConflictError{Reason: ReasonDeviceDefect}
	case models.DeviceMaintenance:
		return &ConflictError{Reason: ReasonDeviceMaintenance}
	default:
		return &ConflictError{Reason: ReasonDeviceOnLoan}
	}
}

// sanitizeNote 归一化归还备注：去空白，空串归 NULL，超长拒绝
func sanitizeNote(note *string) (*string, error) {
	if note == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*note)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > maxNoteLen {
		return nil, &ValidationError{Field: "returnNote", Msg: "longer than 500 chars"}
	}
	return &s, nil
}

// BorrowDevice 借出：读状态 → 条件更新占用 → 新建 Loan，整体一个事务。
// 真正的判定在条件更新的 WHERE 里，读只用来区分 404 和 409 的成因；
// 并发借同一台设备时只有一个赢家，输家拿 ConflictError。
func (r *Repo) BorrowDevice(ctx context.Context, deviceID, borrowerName string) (*models.Loan, error) {
	name := strings.TrimSpace(borrowerName)
	if name == "" {
		return nil, &ValidationError{Field: "borrowerName", Msg: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > maxBorrowerLen {
		return nil, &ValidationError{Field: "borrowerName", Msg: "longer than 100 chars"}
	}

	var loan *models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 读设备
		var dev models.Device
		if err := tx.First(&dev, "id = ?", deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "device", ID: deviceID}
			}
			return err
		}
		if dev.Status != models.DeviceAvailable {
			return conflictForStatus(dev.Status)
		}

		// 2) 占用：UPDATE ... WHERE status = 'AVAILABLE'，按影响行数分支
		res := tx.Model(&models.Device{}).
			Where("id = ? AND status = ?", deviceID, models.DeviceAvailable).
			Update("status", models.DeviceOnLoan)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 读到 AVAILABLE 之后被并发请求抢先
			return &ConflictError{Reason: ReasonDeviceOnLoan}
		}

		// 3) 新建 Loan（部分唯一索引兜底，杜绝双活跃借条）
		l := &models.Loan{
			ID:           uuid.NewString(),
			DeviceID:     deviceID,
			BorrowerName: name,
			BorrowedAt:   time.Now().UTC(),
		}
		if err := tx.Create(l).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Reason: ReasonDeviceOnLoan}
			}
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, storageErr("borrow device", err)
	}
	return loan, nil
}

// ReturnLoan 归还：条件更新 returned_at IS NULL 关闭借条并释放设备。
// 双重归还时第二个请求在条件更新上落空，拿 ConflictError，绝不静默覆盖。
func (r *Repo) ReturnLoan(ctx context.Context, loanID string, returnNote *string) (*models.Loan, error) {
	note, verr := sanitizeNote(returnNote)
	if verr != nil {
		return nil, verr
	}

	var out models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l models.Loan
		if err := tx.First(&l, "id = ?", loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "loan", ID: loanID}
			}
			return err
		}
		if l.ReturnedAt != nil {
			return &ConflictError{Reason: ReasonLoanReturned}
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Loan{}).
			Where("id = ? AND returned_at IS NULL", loanID).
			Updates(map[string]interface{}{
				"returned_at": now,
				"return_note": note,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: ReasonLoanReturned}
		}

		// 释放设备；若管理端在外借期间改成了 DEFECT/MAINTENANCE，
		// 这里不覆盖（条件落空不算错）
		if err := tx.Model(&models.Device{}).
			Where("id = ? AND status = ?", l.DeviceID, models.DeviceOnLoan).
			Update("status", models.DeviceAvailable).Error; err != nil {
			return err
		}

		l.ReturnedAt = &now
		l.ReturnNote = note
		out = l
		return nil
	})
	if err != nil {
		return nil, storageErr("return loan", err)
	}
	return &out, nil
}

func (r *Repo) FindLoanByID(ctx context.Context, id string) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "loan", ID: id}
		}
		return nil, storageErr("find loan", err)
	}
	return &l, nil
}

// OpenLoanForDevice 当前未归还的借条；没有则 NotFound
func (r *Repo) OpenLoanForDevice(ctx context.Context, deviceID string) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).
		Where("device_id = ? AND returned_at IS NULL", deviceID).
		First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "loan", ID: deviceID}
		}
		return nil, storageErr("open loan for device", err)
	}
	return &l, nil
}

// 历史查询（只读投影，不参与并发协议）

type LoanRow struct {
	models.Loan
	DeviceSerial string `json:"deviceSerial"`
	DeviceName   string `json:"deviceName"`
}

type LoanQuery struct {
	DeviceID string
	Borrower string // 模糊匹配
	Status   string // "", "open", "returned"
	Page     int
	Size     int
}

type PagedLoans struct {
	Total int64     `json:"total"`
	Items []LoanRow `json:"items"`
}

func (r *Repo) ListLoans(ctx context.Context, q LoanQuery) (*PagedLoans, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	base := r.DB.WithContext(ctx).
		Table(models.LoanTable + " l").
		Joins("JOIN " + models.DeviceTable + " d ON d.id = l.device_id")

	if q.DeviceID != "" {
		base = base.Where("l.device_id = ?", q.DeviceID)
	}
	if s := strings.TrimSpace(q.Borrower); s != "" {
		base = base.Where("LOWER(l.borrower_name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	switch q.Status {
	case "open":
		base = base.Where("l.returned_at IS NULL")
	case "returned":
		base = base.Where("l.returned_at IS NOT NULL")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, storageErr("count loans", err)
	}

	var rows []LoanRow
	if err := base.
		Select("l.*, d.serial AS device_serial, d.name AS device_name").
		Order("l.borrowed_at DESC").
		Offset((q.Page - 1) * q.Size).
		Limit(q.Size).
		Scan(&rows).Error; err != nil {
		return nil, storageErr("list loans", err)
	}
	return &PagedLoans{Total: total, Items: rows}, nil
}

func (r *Repo) CountOpenLoans(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("returned_at IS NULL").
		Count(&n).Error
	if err != nil {
		return 0, storageErr("count open loans", err)
	}
	return n, nil
}
