// db/errors.go
package db

import (
	"errors"
	"fmt"
)

// 错误分四类，调用方用 errors.As / Is* 判断后映射状态码，
// 不允许对错误文案做字符串匹配。

// ConflictReason 标明 409 的具体成因，只用于用户提示
type ConflictReason string

const (
	ReasonDeviceOnLoan      ConflictReason = "device is on loan"
	ReasonDeviceDefect      ConflictReason = "device is defect"
	ReasonDeviceMaintenance ConflictReason = "device is in maintenance"
	ReasonLoanReturned      ConflictReason = "loan already returned"
	ReasonDeviceHasOpenLoan ConflictReason = "device has an open loan"
)

// NotFoundError 引用的设备/借条不存在
type NotFoundError struct {
	Entity string // "device" | "loan" | "user" | "invite"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError 前置条件在提交时不成立（含并发竞争的输家）
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string { return string(e.Reason) }

// ValidationError 形状校验兜底：正常情况下 HTTP 层已经拦截
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// StorageError 底层存储故障，原样上抛，不在协议内重试
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// storageErr 包装底层错误；已分类的错误原样透传
func storageErr(op string, err error) error {
	var nf *NotFoundError
	var c *ConflictError
	var v *ValidationError
	if errors.As(err, &nf) || errors.As(err, &c) || errors.As(err, &v) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
