package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix 为所有环境变量覆盖项的前缀。
const EnvPrefix = "BUNDLESPLIT_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Input:   "-",
		Logging: Logging{Level: "info"},
		Components: Components{
			Reader:   "fs",
			Splitter: "marker",
			Writer:   "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if strings.TrimSpace(over.Input) != "" {
		out.Input = strings.TrimSpace(over.Input)
	}
	// 内联表与外部文件互斥：任一来源给出即替换另一者
	if len(over.Registry) > 0 || strings.TrimSpace(over.RegistryFile) != "" {
		out.Registry = over.Registry.Clone()
		out.RegistryFile = strings.TrimSpace(over.RegistryFile)
	}
	if over.DryRun != nil {
		v := *over.DryRun
		out.DryRun = &v
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.ToLower(strings.TrimSpace(over.Logging.Level))
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Splitter != "" {
		out.Components.Splitter = over.Components.Splitter
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Splitter) > 0 {
		out.Options.Splitter = cloneRaw(over.Options.Splitter)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 BUNDLESPLIT_；集合之外的键忽略。
// 支持：INPUT, REGISTRY_FILE, DRY_RUN, LOG_LEVEL, COMPONENTS_{READER,SPLITTER,WRITER},
// OPTIONS_{READER,SPLITTER,WRITER}_JSON。
// CONFIG_FILE/CONFIG_JSON 选择配置来源，由调用方处理。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := kv[eq+1:]
		switch key {
		case "INPUT":
			over.Input = strings.TrimSpace(val)
		case "REGISTRY_FILE":
			over.RegistryFile = strings.TrimSpace(val)
		case "DRY_RUN":
			if strings.TrimSpace(val) == "" {
				continue
			}
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return Config{}, fmt.Errorf("env %sDRY_RUN: %w", EnvPrefix, err)
			}
			over.DryRun = &b
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_SPLITTER":
			over.Components.Splitter = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawIfSet(val)
		case "OPTIONS_SPLITTER_JSON":
			over.Options.Splitter = rawIfSet(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawIfSet(val)
		}
	}
	return over, nil
}

// rawIfSet: 空值视为未设置，避免清空现有配置。
func rawIfSet(val string) json.RawMessage {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return json.RawMessage(val)
}

// SetWriterOption 在 writer options 上设置单个键（其余键保留）。
func SetWriterOption(cfg Config, key string, value any) (Config, error) {
	m := map[string]any{}
	if len(cfg.Options.Writer) > 0 {
		if err := json.Unmarshal(cfg.Options.Writer, &m); err != nil {
			return cfg, err
		}
	}
	m[key] = value
	b, err := json.Marshal(m)
	if err != nil {
		return cfg, err
	}
	cfg.Options.Writer = b
	return cfg, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
