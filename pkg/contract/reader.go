package contract

import "context"

// Reader: 输入源抽象（文件/STDIN）。
// 约束：
// 1) 一次交付完整载荷（切分需要整段文本）；
// 2) 仅做 CRLF→LF 的最小必要归一，不做业务解析；
// 3) 不在内部起并发。
type Reader interface {
	Read(ctx context.Context, source string) (Bundle, error)
}
