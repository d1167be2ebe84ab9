package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"bundlesplit/pkg/contract"
)

// 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if _, err := w.Write([]byte("first line that is very long\n")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	defer w.Close()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

// 当前文件名与时间戳文件存在
func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	defer w.Close()
	for i := 0; i < 5; i++ {
		if _, err := w.Write([]byte("xxxxxxxxxxxxxxxxxx\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == "bundlesplit-current.log" {
			hasCurrent = true
		} else if strings.HasPrefix(e.Name(), "bundlesplit-") && strings.HasSuffix(e.Name(), ".log") {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

// 默认 maxBytes、Sync 与 rotate 在 f==nil 分支
func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	if err := w.Sync(); err != nil {
		t.Fatalf("sync before open: %v", err)
	}
	if _, err := w.Write([]byte("a\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	_ = w.Close()
	if err := w.rotate(); err != nil { //nolint:forbidigo
		t.Fatalf("rotate: %v", err)
	}
	_ = w.Close()
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{contract.ErrNoSections, CodeConfig},
		{fmt.Errorf("%w: dup", contract.ErrInvalidRegistry), CodeConfig},
		{fmt.Errorf("%w: a.md: %w", contract.ErrStorage, &fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}), CodeStorage},
		{contract.ErrPathInvalid, CodeInvariant},
		{contract.ErrInvalidInput, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("Classify(%v)=%s want %s", c.err, got, c.want)
		}
	}
}

type bufSink struct{ bytes.Buffer }

func (b *bufSink) Sync() error { return nil }

var _ zapcore.WriteSyncer = (*bufSink)(nil)

func decodeEvents(t *testing.T, b *bufSink) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

// Logger 事件字段
func TestLoggerFields(t *testing.T) {
	sink := &bufSink{}
	l := NewLoggerTo("corr-1", "info", sink)
	tm := l.StartWith("writer", "write artifact", "a.md")
	tm.Finish("written", 3)
	l.ErrorWith("writer", string(CodeStorage), "write failed", tm.Since(), "b.md", map[string]string{"location": "out/b.md"})
	evs := decodeEvents(t, sink)
	if len(evs) != 3 {
		t.Fatalf("want 3 events, got %d", len(evs))
	}
	if evs[0]["corr_id"] != "corr-1" || evs[0]["comp"] != "writer" || evs[0]["stage"] != "start" || evs[0]["artifact"] != "a.md" {
		t.Fatalf("start event: %v", evs[0])
	}
	if evs[1]["stage"] != "finish" || evs[1]["count"] != float64(3) {
		t.Fatalf("finish event: %v", evs[1])
	}
	if evs[2]["level"] != "error" || evs[2]["code"] != "storage" {
		t.Fatalf("error event: %v", evs[2])
	}
	kv, _ := evs[2]["kv"].(map[string]any)
	if kv["location"] != "out/b.md" {
		t.Fatalf("kv: %v", evs[2]["kv"])
	}
}

// 级别过滤
func TestLoggerLevelFilter(t *testing.T) {
	sink := &bufSink{}
	l := NewLoggerTo("c", "warn", sink)
	l.Start("comp", "msg").Finish("ok", 1)
	l.DebugStart("comp", "msg", "", nil)
	l.Info("comp", "msg", nil)
	l.Warn("comp", "overlap", map[string]string{"outer": "a", "inner": "b"})
	start := time.Now().Add(-10 * time.Millisecond)
	l.Error("comp", "code", "msg", &start)
	evs := decodeEvents(t, sink)
	if len(evs) != 2 {
		t.Fatalf("want warn+error only, got %d: %v", len(evs), evs)
	}
	if evs[0]["level"] != "warn" || evs[1]["level"] != "error" {
		t.Fatalf("levels: %v", evs)
	}

	dbg := &bufSink{}
	NewLoggerTo("c", "DEBUG", dbg).DebugStart("comp", "msg", "a.md", map[string]string{"k": "v"})
	if len(decodeEvents(t, dbg)) != 1 {
		t.Fatalf("debug should pass at debug level")
	}
}

// nil 接收者早返回
func TestLoggerNilNoop(t *testing.T) {
	var l *Logger
	tm := l.Start("comp", "msg")
	tm.Finish("x", 0)
	if tm.Since() != nil {
		t.Fatalf("nil timer since")
	}
	l.Info("c", "m", nil)
	l.Warn("c", "m", nil)
	l.Error("c", "code", "m", nil)
	l.DebugStart("c", "m", "", nil)
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	(&Timer{}).Finish("x", 0)
}

// 默认 sink 写入轮转文件
func TestLoggerWithRotatingSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerTo("corr", "info", NewRotatingFile(dir, 0))
	l.Start("comp", "msg").Finish("ok", 1)
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "bundlesplit-current.log"))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	if !strings.Contains(string(b), `"corr_id":"corr"`) {
		t.Fatalf("unexpected log: %s", b)
	}
}

// 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart("bundle.txt", 2, false)
	term.Artifact("A.md", "out/A.md", 3)
	term.Artifact("B.md", "out/B.md", 1)
	term.RunFinish(true, 1500*time.Millisecond)

	want := []string{
		"[run] bundle.txt | 分段=2 | 模式=write",
		"[ok] A.md -> out/A.md (3 lines)",
		"[ok] B.md -> out/B.md (1 lines)",
		"[done] 工件 2 | 行数 4 | 总用时 1.5s",
	}
	got := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("terminal output mismatch:\n%s", sb.String())
	}
}

// 失败与 dry-run
func TestTerminalFailAndDryRun(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.RunStart("stdin", 1, true)
	term.RunFinish(false, 0)
	out := sb.String()
	if !strings.Contains(out, "模式=dry-run") || !strings.Contains(out, "[fail] 工件 0 | 行数 0 | 总用时 0ms") {
		t.Fatalf("unexpected: %q", out)
	}
}

// TTY 下标签仍可见
func TestTerminalTTYTag(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.Artifact("a\nb", "loc", 0)
	if !strings.Contains(sb.String(), "[ok]") || !strings.Contains(sb.String(), "a b -> loc (0 lines)") {
		t.Fatalf("unexpected: %q", sb.String())
	}
}

// 写失败降级为禁用态
type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.RunStart("x", 1, false)
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.Artifact("a", "b", 1)
	term.RunFinish(true, 0)
}

// disabled 与 nil 接收者
func TestTerminalDisabledAndNil(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, false)
	term.RunStart("x", 1, false)
	term.Artifact("a", "b", 1)
	term.RunFinish(true, 0)
	if sb.Len() != 0 {
		t.Fatalf("disabled terminal should not write")
	}
	var tn *Terminal
	tn.RunStart("x", 1, false)
	tn.Artifact("a", "b", 1)
	tn.RunFinish(true, 0)
}

// CI 环境强制非 TTY
func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	term := NewTerminal(os.Stderr, true)
	if term.isTTY {
		t.Fatalf("CI env should force non-tty")
	}
}

func TestHelpers(t *testing.T) {
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" {
		t.Fatalf("formatDur 0ms failed")
	}
	if formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur 1.5s failed: %s", formatDur(1500*time.Millisecond))
	}
}
