package contract

import (
	"fmt"
	"strings"
)

// Registry: 有序标记表。顺序即优先级：同一行命中多个标记时，先注册者胜出。
// 刻意使用切片而非 map，以保证迭代顺序稳定。
type Registry []Marker

// Validate 校验标记表：ID/Text 非空、ID 唯一、Text 唯一。
// 空表视为合法（切分结果恒为空，由写出阶段报告配置错误）。
func (r Registry) Validate() error {
	ids := make(map[ArtifactID]struct{}, len(r))
	texts := make(map[string]struct{}, len(r))
	for i, m := range r {
		if strings.TrimSpace(string(m.ID)) == "" {
			return fmt.Errorf("%w: entry %d has empty id", ErrInvalidRegistry, i)
		}
		if m.Text == "" {
			return fmt.Errorf("%w: %s has empty marker", ErrInvalidRegistry, m.ID)
		}
		if _, dup := ids[m.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidRegistry, m.ID)
		}
		if _, dup := texts[m.Text]; dup {
			return fmt.Errorf("%w: duplicate marker %q", ErrInvalidRegistry, m.Text)
		}
		ids[m.ID] = struct{}{}
		texts[m.Text] = struct{}{}
	}
	return nil
}

// Overlap 描述一对存在包含关系的标记：Inner 的文本是 Outer 文本的子串。
type Overlap struct {
	Outer ArtifactID
	Inner ArtifactID
}

// Overlaps 列出互为子串的标记对（按注册顺序）。
// 这类表仍可确定性地工作（先注册者胜出），但可能与作者意图不符。
func (r Registry) Overlaps() []Overlap {
	var out []Overlap
	for i, a := range r {
		for j, b := range r {
			if i == j || a.Text == "" || b.Text == "" {
				continue
			}
			if strings.Contains(a.Text, b.Text) {
				out = append(out, Overlap{Outer: a.ID, Inner: b.ID})
			}
		}
	}
	return out
}

// Clone 返回独立副本。
func (r Registry) Clone() Registry {
	if r == nil {
		return nil
	}
	out := make(Registry, len(r))
	copy(out, r)
	return out
}
