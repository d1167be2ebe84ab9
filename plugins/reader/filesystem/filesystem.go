package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"bundlesplit/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// MaxBytes: 载荷上限（字节）。0 表示不限制。
	MaxBytes int64 `json:"max_bytes"`
	// Frontmatter: 为 true 时识别载荷开头的 YAML frontmatter（--- 包围），
	// 其中的 markers 列表作为载荷自带的标记表，正文为其余部分。
	Frontmatter bool `json:"frontmatter"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
type FileSystem struct {
	bufSize     int
	maxBytes    int64
	frontmatter bool
	stdin       io.Reader
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, stdin: os.Stdin}
	if opts != nil {
		if opts.BufSize > 0 {
			r.bufSize = opts.BufSize
		}
		if opts.MaxBytes > 0 {
			r.maxBytes = opts.MaxBytes
		}
		r.frontmatter = opts.Frontmatter
	}
	return r
}

var _ contract.Reader = (*FileSystem)(nil)

// Read 读取完整载荷；source 为空或 "-" 表示 STDIN。
func (r *FileSystem) Read(ctx context.Context, source string) (contract.Bundle, error) {
	select {
	case <-ctx.Done():
		return contract.Bundle{}, ctx.Err()
	default:
	}

	// 仅在判断 STDIN 时忽略首尾空白；文件路径按原样打开
	src := source
	var in io.Reader
	if t := strings.TrimSpace(source); t == "" || t == "-" {
		src = "stdin"
		in = r.stdin
	} else {
		info, err := os.Stat(src)
		if err != nil {
			return contract.Bundle{}, err
		}
		if !info.Mode().IsRegular() {
			return contract.Bundle{}, fmt.Errorf("%w: %s is not a regular file", contract.ErrInvalidInput, src)
		}
		f, err := os.Open(src)
		if err != nil {
			return contract.Bundle{}, err
		}
		defer f.Close()
		in = f
	}

	data, err := r.readAll(in)
	if err != nil {
		return contract.Bundle{}, err
	}
	text := contract.NormalizeNewlines(string(data))
	b := contract.Bundle{Source: src, Text: text}
	if r.frontmatter && strings.HasPrefix(text, "---\n") {
		reg, body, err := parseFrontmatter(text)
		if err != nil {
			return contract.Bundle{}, err
		}
		b.Text = body
		b.Registry = reg
	}
	return b, nil
}

// readAll 带上限的整体读取；超限返回 ErrInvalidInput。
func (r *FileSystem) readAll(in io.Reader) ([]byte, error) {
	br := bufio.NewReaderSize(in, r.bufSize)
	if r.maxBytes <= 0 {
		return io.ReadAll(br)
	}
	data, err := io.ReadAll(io.LimitReader(br, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: bundle exceeds %d bytes", contract.ErrInvalidInput, r.maxBytes)
	}
	return data, nil
}

type bundleHeader struct {
	Markers []contract.Marker `yaml:"markers"`
}

var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

func parseFrontmatter(text string) (contract.Registry, string, error) {
	var hdr bundleHeader
	body, err := frontmatter.Parse(bytes.NewReader([]byte(text)), &hdr, yamlFormat)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bundle frontmatter: %v", contract.ErrInvalidInput, err)
	}
	return contract.Registry(hdr.Markers), string(body), nil
}
