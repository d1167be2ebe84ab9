package contract

import (
	"context"
	"io"
)

// Resolver: 将输出标识映射到目标位置（注入的协作者，不属于写出核心）。
// 越界或非法标识返回 ErrPathInvalid。
type Resolver interface {
	Resolve(id ArtifactID) (Location, error)
}

// ResolverFunc 允许以函数充当 Resolver。
type ResolverFunc func(id ArtifactID) (Location, error)

// Resolve 实现 Resolver。
func (f ResolverFunc) Resolve(id ArtifactID) (Location, error) { return f(id) }

// Writer: 将内容以整体替换方式持久化到目标位置（文件系统/键值存储等）。
// 约束：
//  1. 同一 Location 单写者；
//  2. 完全替换既有内容（无合并、无追加）；
//  3. 对调用方原子：要么完整落地，要么返回错误且不留下部分结果；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, loc Location, r io.Reader) error
}

// Destination: 同时提供解析与写入的目标介质（注册表中 writer 工厂的产物）。
type Destination interface {
	Resolver
	Writer
}
