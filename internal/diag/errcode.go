package diag

import (
	"context"
	"errors"
	"os"

	"bundlesplit/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeConfig    Code = "config"
	CodeStorage   Code = "storage"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrNoSections) || errors.Is(err, contract.ErrInvalidRegistry) {
		return CodeConfig
	}
	if errors.Is(err, contract.ErrStorage) {
		return CodeStorage
	}
	if errors.Is(err, contract.ErrPathInvalid) || errors.Is(err, contract.ErrInvalidInput) {
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
