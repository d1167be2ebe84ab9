package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "bundlesplit/internal/config"
	"bundlesplit/internal/diag"
	"bundlesplit/internal/pipeline"
	"bundlesplit/pkg/contract"
)

var pipelineRun = pipeline.Run

// 退出码
const (
	exitOK       = 0
	exitRuntime  = 1
	exitNoOutput = 2
	exitConfig   = 3
)

type cliOptions struct {
	config    string
	registry  string
	outputDir string
	writer    string
	logLevel  string
	dryRun    bool
	status    bool
	initDir   string
}

// exitError 携带退出码穿过 cobra 的 RunE。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.Execute()
	var ee *exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ee):
		return ee.code
	default:
		// 旗标/参数解析失败
		fprintf(os.Stderr, "参数错误: %v\n", err)
		return exitConfig
	}
}

func newRootCmd() *cobra.Command {
	var opts cliOptions
	cmd := &cobra.Command{
		Use:   "bundlesplit [bundle]",
		Short: "Split a marker-delimited text bundle into standalone artifacts",
		Long: `bundlesplit reads one text bundle (a file, or "-" for STDIN), splits it into
sections at lines containing registered marker substrings, and writes each
section as its own artifact.

Configuration precedence: CLI > ENV (BUNDLESPLIT_*) > JSON config > defaults.

Exit codes: 0 ok, 1 runtime failure, 2 no sections found, 3 configuration error.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := execute(cmd, opts, args); code != exitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.config, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	f.StringVar(&opts.registry, "registry", "", "标记表文件（.yaml/.yml/.json），覆盖配置中的标记表")
	f.StringVar(&opts.outputDir, "output-dir", "", "输出目录（仅 fs writer）")
	f.StringVar(&opts.writer, "writer", "", "目标实现：fs | sqlite")
	f.StringVar(&opts.logLevel, "log-level", "", "日志等级：debug|info|warn|error")
	f.BoolVar(&opts.dryRun, "dry-run", false, "仅报告工件位置与行数，不写入")
	f.BoolVar(&opts.status, "status", true, "终端状态提示（stderr）")
	f.StringVar(&opts.initDir, "init-config", "", "在指定目录生成 config.json 与 registry.yaml（已存在则跳过）；不带值时为当前目录")
	f.Lookup("init-config").NoOptDefVal = "."
	return cmd
}

func execute(cmd *cobra.Command, opts cliOptions, args []string) int {
	start := time.Now()
	corrID := uuid.NewString()
	// 先占位默认，稍后在合并配置后重建 logger 以使用最终 level
	logger := diag.NewLogger(corrID, "info")
	defer func() { _ = logger.Sync() }()

	// --init-config: 生成模板并退出
	if dir := strings.TrimSpace(opts.initDir); dir != "" {
		// 兼容 "--init-config out"：裸开关取默认值，目录落到位置参数
		if dir == "." && len(args) == 1 && !strings.HasPrefix(args[0], "-") {
			dir = args[0]
		}
		created, err := cfgpkg.WriteTemplate(dir)
		if err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "init-config failed", &start)
			return exitConfig
		}
		for _, p := range created {
			fprintf(os.Stderr, "已生成: %s\n", p)
		}
		if len(created) == 0 {
			fprintf(os.Stderr, "模板已存在，未覆盖: %s\n", dir)
		}
		return exitOK
	}

	cfg, err := loadConfig(cmd, opts, args)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(cfg)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	// 使用最终配置中的日志级别重建 logger
	_ = logger.Sync()
	logger = diag.NewLogger(corrID, cfg.Logging.Level)

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}
	set.Terminal = diag.NewTerminal(os.Stderr, opts.status)

	logger.DebugStart("config", "effective", "", map[string]string{
		"input":         cfg.Input,
		"registry_file": cfg.RegistryFile,
		"inline":        fmt.Sprintf("%d", len(cfg.Registry)),
		"dry_run":       fmt.Sprintf("%t", cfg.IsDryRun()),
		"reader":        cfg.Components.Reader,
		"splitter":      cfg.Components.Splitter,
		"writer":        cfg.Components.Writer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	rep, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return exitCode(err)
	}
	t.Finish("run", int64(len(rep.Entries)))
	return exitOK
}

// loadConfig 按 CLI > ENV > JSON > 默认 合并配置。
func loadConfig(cmd *cobra.Command, opts cliOptions, args []string) (cfgpkg.Config, error) {
	// JSON 配置（文件或 ENV: BUNDLESPLIT_CONFIG_JSON）
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	path := opts.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	// 默认读取工作目录下 config.json（若存在）
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if path != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(path, cfgJSON)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var overCLI cfgpkg.Config
	if len(args) > 0 {
		overCLI.Input = args[0]
	}
	overCLI.RegistryFile = opts.registry
	overCLI.Logging.Level = opts.logLevel
	overCLI.Components.Writer = opts.writer
	if cmd.Flags().Changed("dry-run") {
		v := opts.dryRun
		overCLI.DryRun = &v
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if dir := strings.TrimSpace(opts.outputDir); dir != "" {
		if cfg.Components.Writer != "fs" {
			return cfg, fmt.Errorf("--output-dir applies to the fs writer only (writer=%q)", cfg.Components.Writer)
		}
		cfg, err = cfgpkg.SetWriterOption(cfg, "output_dir", dir)
		if err != nil {
			return cfg, fmt.Errorf("options.writer: %w", err)
		}
	}
	return cfg, nil
}

// exitCode 将运行期错误映射为退出码。
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, contract.ErrNoSections):
		return exitNoOutput
	case errors.Is(err, contract.ErrInvalidRegistry):
		return exitConfig
	default:
		return exitRuntime
	}
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查父目录是否可写（尝试在父目录创建并删除临时目录）。
// dry-run 与其他 writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	if cfg.IsDryRun() || strings.TrimSpace(cfg.Components.Writer) != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil && !st.IsDir() {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	// 目录不存在：检查最近的已存在祖先目录可写性
	parent := filepath.Dir(dir)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
