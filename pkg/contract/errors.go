package contract

import "errors"

// 最小错误分类（用于上层策略判定与退出码映射）。
var (
	// ErrNoSections: 配置错误：标记表与文本没有任何交集，写出阶段必须中止。
	ErrNoSections = errors.New("no sections found")
	// ErrStorage: 目标介质拒绝写入（权限、父命名空间缺失等）；整批中止。
	ErrStorage = errors.New("storage error")
	// ErrPathInvalid: 输出标识映射为无效/越界位置（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidRegistry: 标记表不合法（空 ID/空标记/重复）。
	ErrInvalidRegistry = errors.New("invalid registry")
	// ErrInvalidInput: 输入载荷不可用（超限、来源非法等）。
	ErrInvalidInput = errors.New("invalid input")
)
