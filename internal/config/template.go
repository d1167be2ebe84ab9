package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"bundlesplit/pkg/contract"
)

// DefaultRegistry 返回内置的四工件标记表（提示词 + 代理说明 + 功能日志 + 代理笔记）。
func DefaultRegistry() contract.Registry {
	return contract.Registry{
		{ID: "PROMPT_CODEX.txt", Text: "PROMPT STARTOWY DO CODEXA"},
		{ID: "agent.md", Text: "agent.md"},
		{ID: "FEATURE_LOG.md", Text: "FEATURE_LOG.md"},
		{ID: "AGENT_NOTES.md", Text: "AGENT_NOTES.md"},
	}
}

// TemplateRegistryFile 为模板中标记表文件的默认文件名。
const TemplateRegistryFile = "registry.yaml"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），Writer 输出到 ./out 目录；
// - 标记表引用同目录的 registry.yaml；
// - 选项给出安全中性默认值，包含全部键。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.RegistryFile = TemplateRegistryFile
	dry := false
	cfg.DryRun = &dry
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "max_bytes": 0,
  "frontmatter": false
}`)
	cfg.Options.Splitter = json.RawMessage(`{
  "match_raw": false
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}

// WriteTemplate 在 dir 下生成 config.json 与 registry.yaml；已存在的文件跳过（不覆盖）。
// 返回实际创建的文件路径。
func WriteTemplate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	cfgBytes, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return nil, err
	}
	regBytes, err := MarshalRegistryYAML(DefaultRegistry())
	if err != nil {
		return nil, err
	}
	var created []string
	for _, f := range []struct {
		name string
		data []byte
	}{
		{"config.json", append(cfgBytes, '\n')},
		{TemplateRegistryFile, regBytes},
	} {
		p := filepath.Join(dir, f.name)
		ok, err := writeExclusive(p, f.data)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, p)
		}
	}
	return created, nil
}

// writeExclusive 仅在文件不存在时创建；已存在返回 (false, nil)。
func writeExclusive(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}
