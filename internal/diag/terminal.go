package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 标签着色；非 TTY: 纯文本。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	okTag   lipgloss.Style
	failTag lipgloss.Style
	dimTag  lipgloss.Style

	artifacts int
	lines     int
	runStart  time.Time

	mu sync.Mutex
}

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				t.isTTY = fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	t.okTag = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	t.failTag = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	t.dimTag = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	return t
}

// RunStart: 记录来源与计划工件数。
func (t *Terminal) RunStart(source string, sections int, dryRun bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.artifacts, t.lines = 0, 0
	t.runStart = time.Now()
	mode := "write"
	if dryRun {
		mode = "dry-run"
	}
	t.println(fmt.Sprintf("%s %s | 分段=%d | 模式=%s", t.tag(t.dimTag, "run"), safe(source), sections, mode))
}

// Artifact: 单个工件确认行。
func (t *Terminal) Artifact(id, location string, lines int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.artifacts++
	t.lines += lines
	t.println(fmt.Sprintf("%s %s -> %s (%d lines)", t.tag(t.okTag, "ok"), safe(id), safe(location), lines))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := t.tag(t.okTag, "done")
	if !ok {
		tag = t.tag(t.failTag, "fail")
	}
	t.println(fmt.Sprintf("%s 工件 %d | 行数 %d | 总用时 %s", tag, t.artifacts, t.lines, formatDur(dur)))
}

func (t *Terminal) tag(st lipgloss.Style, s string) string {
	s = "[" + s + "]"
	if !t.isTTY {
		return s
	}
	return st.Render(s)
}

func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
}

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}
