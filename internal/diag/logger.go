package diag

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化日志器：zap JSON 单行事件写入轮转文件。
// nil *Logger 上的所有方法均为 no-op。
type Logger struct {
	z    *zap.Logger
	sink zapcore.WriteSyncer
}

// NewLogger 通过配置的 level 初始化，并将日志写入默认目录 logs，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerTo(corrID, level, NewRotatingFile("logs", 10*1024*1024))
}

// NewLoggerTo 将日志写入指定 sink（测试或自定义目录）。
func NewLoggerTo(corrID, level string, sink zapcore.WriteSyncer) *Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339),
		EncodeDuration: zapcore.MillisDurationEncoder,
	})
	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(parseLevel(level)))
	z := zap.New(core).With(zap.String("corr_id", corrID))
	return &Logger{z: z, sink: sink}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync 刷新并关闭底层 sink（若可关闭）。
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	err := l.z.Sync()
	if c, ok := l.sink.(interface{ Close() error }); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func event(comp, stage string, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("comp", comp), zap.String("stage", stage)}, extra...)
}

func kvField(kv map[string]string) zap.Field {
	if len(kv) == 0 {
		return zap.Skip()
	}
	return zap.Any("kv", kv)
}

func artifactField(id string) zap.Field {
	if id == "" {
		return zap.Skip()
	}
	return zap.String("artifact", id)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "")
}

// StartWith 记录带 artifact 的 start。
func (l *Logger) StartWith(comp, msg, artifact string) *Timer {
	if l == nil {
		return nil
	}
	l.z.Info(msg, event(comp, "start", artifactField(artifact))...)
	return &Timer{l: l, comp: comp, artifact: artifact, t0: time.Now()}
}

// Info 记录一般信息事件。
func (l *Logger) Info(comp, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Info(msg, event(comp, "info", kvField(kv))...)
}

// Artifact 记录单个工件的落地结果；终端关闭时也保留逐工件报告。
func (l *Logger) Artifact(comp, msg, artifact string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Info(msg, event(comp, "finish", artifactField(artifact), kvField(kv))...)
}

// Warn 记录告警（例如标记互为子串）。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Warn(msg, event(comp, "warn", kvField(kv))...)
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 artifact 与附加键值。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, artifact string, kv map[string]string) {
	if l == nil {
		return
	}
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.z.Error(msg, event(comp, "error",
		zap.String("code", code),
		zap.Int64("dur_ms", dur),
		artifactField(artifact),
		kvField(kv))...)
}

// DebugStart 输出调试级别的 start 事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, artifact string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Debug(msg, event(comp, "start", artifactField(artifact), kvField(kv))...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l        *Logger
	comp     string
	artifact string
	t0       time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.z.Info(msg, event(t.comp, "finish",
		zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()),
		zap.Int64("count", count),
		artifactField(t.artifact))...)
}

// Since 返回计时起点（供 Error 计算耗时）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	t0 := t.t0
	return &t0
}
