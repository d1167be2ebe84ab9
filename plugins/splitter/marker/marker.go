package marker

import (
	"strings"

	"bundlesplit/pkg/contract"
)

// Options 为标记切分器的可选配置（最小必要）。
type Options struct {
	// MatchRaw: 为 true 时对原始行做包含匹配；默认对去首尾空白后的行匹配。
	MatchRaw bool `json:"match_raw"`
}

// Splitter 实现基于标记子串的分段切分。
type Splitter struct {
	matchRaw bool
}

// New 创建标记切分器。
func New(opts *Options) *Splitter {
	s := &Splitter{}
	if opts != nil {
		s.matchRaw = opts.MatchRaw
	}
	return s
}

var _ contract.Splitter = (*Splitter)(nil)

// Split 单次线性扫描 text，按 reg 的注册顺序识别分段边界。
func (s *Splitter) Split(text string, reg contract.Registry) *contract.OutputMap {
	out := contract.NewOutputMap()
	if text == "" || len(reg) == 0 {
		return out
	}

	var (
		current contract.ArtifactID
		active  bool
		buf     []string
	)
	// flush: 仅在缓冲非空时定稿；连续标记之间的空分段被丢弃。
	flush := func() {
		if active && len(buf) > 0 {
			out.Set(current, strings.TrimSpace(strings.Join(buf, "\n")))
		}
	}

	for _, line := range splitLines(text) {
		if id, ok := s.match(line, reg); ok {
			flush()
			current, active = id, true
			buf = buf[:0]
			continue
		}
		if active {
			buf = append(buf, line)
		}
		// 首个标记之前的行不属于任何分段
	}
	// 输入结束隐式关闭最后一个分段
	flush()
	return out
}

// match 返回首个被 line 包含的标记所对应的输出标识。
func (s *Splitter) match(line string, reg contract.Registry) (contract.ArtifactID, bool) {
	probe := line
	if !s.matchRaw {
		probe = strings.TrimSpace(line)
	}
	for _, m := range reg {
		if m.Text == "" {
			continue
		}
		if strings.Contains(probe, m.Text) {
			return m.ID, true
		}
	}
	return "", false
}

// splitLines 按行切分（CRLF→LF 归一）；末尾单个换行不产生额外空行。
func splitLines(text string) []string {
	text = contract.NormalizeNewlines(text)
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
