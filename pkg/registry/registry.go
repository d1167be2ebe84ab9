package registry

import (
	"bytes"
	"encoding/json"

	"bundlesplit/pkg/contract"
	rfs "bundlesplit/plugins/reader/filesystem"
	smk "bundlesplit/plugins/splitter/marker"
	wfs "bundlesplit/plugins/writer/filesystem"
	wsql "bundlesplit/plugins/writer/sqlite"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewSplitter 工厂签名：接收原样 JSON Options。
type NewSplitter func(raw json.RawMessage) (contract.Splitter, error)

// NewWriter 工厂签名：接收原样 JSON Options；产物同时负责位置解析与写入。
type NewWriter func(raw json.RawMessage) (contract.Destination, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件/STDIN Reader（可选 frontmatter 标记表）
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// marker: 按标记子串切分
	"marker": func(raw json.RawMessage) (contract.Splitter, error) {
		var opts smk.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return smk.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统目标（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Destination, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// sqlite: 单表键值目标（location 为主键）
	"sqlite": func(raw json.RawMessage) (contract.Destination, error) {
		var opts wsql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wsql.New(&opts)
	},
}
