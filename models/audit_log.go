package models

import "time"

// 审计动作
const (
	AuditBorrow       = "borrow"
	AuditReturn       = "return"
	AuditSetStatus    = "set_status"
	AuditDeleteDevice = "delete_device"
)

// AuditLog 记录借还与管理端覆盖操作的审计信息。
// 只追加，不更新；写入失败不回滚业务事务。
type AuditLog struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	Action        string    `gorm:"size:32;index;not null" json:"action"`
	DeviceID      *string   `gorm:"type:uuid;index" json:"deviceId,omitempty"`
	LoanID        *string   `gorm:"type:uuid;index" json:"loanId,omitempty"`
	ActorID       string    `gorm:"type:uuid" json:"actorId"`
	ActorUsername string    `json:"actorUsername"`
	Detail        *string   `gorm:"size:500" json:"detail,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (AuditLog) TableName() string { return "rfl_audit_log" }
