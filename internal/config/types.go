package config

import (
	"encoding/json"

	"bundlesplit/pkg/contract"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Input: 载荷来源（文件路径；"-" 表示 STDIN）。
	Input string `json:"input"`
	// Registry: 内联标记表（有序）；与 RegistryFile 互斥。
	Registry contract.Registry `json:"registry,omitempty"`
	// RegistryFile: 外部标记表文件（.yaml/.yml/.json）。
	RegistryFile string `json:"registry_file,omitempty"`
	// DryRun: 仅报告，不写入。指针用于区分“未设置”与显式 false。
	DryRun  *bool   `json:"dry_run,omitempty"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader   string `json:"reader"`
	Splitter string `json:"splitter"`
	Writer   string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader   json.RawMessage `json:"reader,omitempty"`
	Splitter json.RawMessage `json:"splitter,omitempty"`
	Writer   json.RawMessage `json:"writer,omitempty"`
}

// IsDryRun 返回生效的 dry-run 设置。
func (c Config) IsDryRun() bool { return c.DryRun != nil && *c.DryRun }
