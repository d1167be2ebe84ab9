package contract

import "strings"

// ArtifactID: 输出标识（通常为文件名）；同一 Registry 内唯一。
type ArtifactID string

// Location: Resolver 解析得到的目标位置（文件路径或存储键），仅用于写入与报告。
type Location string

// Marker: 一条 Registry 条目，将输出标识绑定到一个标记子串。
// 约束：ID 与 Text 均非空；Text 按子串包含匹配（非整行相等）。
type Marker struct {
	ID   ArtifactID `json:"id" yaml:"id"`
	Text string     `json:"marker" yaml:"marker"`
}

// Section: 一个已定稿的分段（不含标记行本身，首尾空白已裁剪）。
type Section struct {
	ID      ArtifactID
	Content string
}

// Bundle: Reader 交付的原始文本载荷。
// Registry 仅在载荷自带标记表（如 YAML frontmatter）时非空。
type Bundle struct {
	Source   string
	Text     string
	Registry Registry
}

// ReportEntry: 单个工件的写出结果。
type ReportEntry struct {
	ID       ArtifactID
	Location Location
	Lines    int
}

// Report: 按写出顺序排列的工件报告。
type Report struct {
	Entries []ReportEntry
}

// TotalLines 返回所有工件的行数之和。
func (r Report) TotalLines() int {
	n := 0
	for _, e := range r.Entries {
		n += e.Lines
	}
	return n
}

// CountLines 统计内容行数：空内容为 0；否则为 LF 分隔的行数（CRLF/CR 先归一）。
// 末尾单个换行不计为额外一行。
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	s := NormalizeNewlines(content)
	s = strings.TrimSuffix(s, "\n")
	return strings.Count(s, "\n") + 1
}

// NormalizeNewlines 将 CRLF 与孤立 CR 统一为 LF。
func NormalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
