package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"bundlesplit/pkg/contract"
)

// registryDoc: 标记表文件结构，顶层 markers 为有序列表。
type registryDoc struct {
	Markers []contract.Marker `json:"markers" yaml:"markers"`
}

// LoadRegistryFile 读取标记表文件：.json 按 JSON 严格解析，其余按 YAML 严格解析。
// 结构错误返回 ErrInvalidRegistry；文件不可读时原样返回 I/O 错误。
func LoadRegistryFile(path string) (contract.Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reg, err := ParseRegistry(b, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry 解析标记表文档并校验。
func ParseRegistry(b []byte, asJSON bool) (contract.Registry, error) {
	var doc registryDoc
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrInvalidRegistry, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		// 空文档 io.EOF：视为空表
		if err := dec.Decode(&doc); err != nil && len(bytes.TrimSpace(b)) > 0 {
			return nil, fmt.Errorf("%w: %v", contract.ErrInvalidRegistry, err)
		}
	}
	reg := contract.Registry(doc.Markers)
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// MarshalRegistryYAML 以 YAML 输出标记表（模板生成用）。
func MarshalRegistryYAML(reg contract.Registry) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(registryDoc{Markers: reg}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
