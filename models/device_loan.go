// models/device_loan.go
package models

import "time"

const DeviceTable = "rfl_devices"
const LoanTable = "rfl_loans"

// DeviceStatus 设备状态：AVAILABLE/ON_LOAN 之间的切换由借还协议独占，
// DEFECT/MAINTENANCE 只能由管理端覆盖。
type DeviceStatus string

const (
	DeviceAvailable   DeviceStatus = "AVAILABLE"
	DeviceOnLoan      DeviceStatus = "ON_LOAN"
	DeviceDefect      DeviceStatus = "DEFECT"
	DeviceMaintenance DeviceStatus = "MAINTENANCE"
)

// AdminStatuses 管理端允许手动设置的状态（ON_LOAN 不在其中）
func AdminStatuses() []DeviceStatus {
	return []DeviceStatus{DeviceAvailable, DeviceDefect, DeviceMaintenance}
}

type Device struct {
	ID        string       `gorm:"type:uuid;primaryKey" json:"id"`
	Serial    string       `gorm:"size:120;uniqueIndex;not null" json:"serial"` // 设备唯一编号
	Name      string       `gorm:"size:200;not null" json:"name"`
	Status    DeviceStatus `gorm:"size:20;not null;default:'AVAILABLE'" json:"status"`
	Notes     string       `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type Loan struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID     string    `gorm:"type:uuid;index;not null" json:"deviceId"`
	BorrowerName string    `gorm:"size:100;not null" json:"borrowerName"` // 自由文本，不是外键
	BorrowedAt   time.Time `gorm:"index;not null" json:"borrowedAt"`

	// returned_at IS NULL == 进行中；写入一次后不可变
	ReturnedAt *time.Time `gorm:"index" json:"returnedAt,omitempty"`
	ReturnNote *string    `gorm:"size:500" json:"returnNote,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Device) TableName() string { return DeviceTable }
func (Loan) TableName() string   { return LoanTable }
