package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"bundlesplit/internal/diag"
	"bundlesplit/internal/materialize"
	"bundlesplit/pkg/contract"
)

// - 单遍同步：读取 → 选表 → 切分 → 写出，无并发、无重试。
// - 首错中止：任一阶段失败立即返回；已写出的工件保留（不回滚）。
// - 标记表优先级：显式配置 > 载荷 frontmatter。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader      contract.Reader
	Splitter    contract.Splitter
	Destination contract.Destination
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Source: 载荷来源（文件路径；"-" 或空为 STDIN）
	Source string
	// Registry: 显式标记表；为空时回退到载荷自带的标记表
	Registry contract.Registry
	// DryRun: 仅解析位置与统计行数，不写入
	DryRun bool
	// Terminal: 终端提示（可选）
	Terminal *diag.Terminal
}

// Run 执行完整流水线并返回逐工件报告。
// 失败时返回的 Report 仍包含失败前已写出的工件。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (rep contract.Report, err error) {
	if err := sanity(comp); err != nil {
		return contract.Report{}, fmt.Errorf("sanity: %w", err)
	}
	if c, ok := comp.Destination.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: close destination: %w", contract.ErrStorage, cerr)
			}
		}()
	}

	runStart := time.Now()
	started := false
	defer func() {
		if started {
			set.Terminal.RunFinish(err == nil, time.Since(runStart))
		}
	}()

	// 读取
	rtimer := logger.Start("reader", "read")
	bundle, err := comp.Reader.Read(ctx, set.Source)
	if err != nil {
		logger.ErrorWith("reader", string(diag.Classify(err)), "read failed", rtimer.Since(), "", map[string]string{"source": set.Source})
		return contract.Report{}, fmt.Errorf("read: %w", err)
	}
	rtimer.Finish("read", int64(len(bundle.Text)))

	// 选表
	reg, origin := chooseRegistry(set.Registry, bundle.Registry)
	if err := reg.Validate(); err != nil {
		logger.Error("registry", string(diag.Classify(err)), err.Error(), nil)
		return contract.Report{}, fmt.Errorf("registry (%s): %w", origin, err)
	}
	logger.Info("registry", "registry selected", map[string]string{"origin": origin, "markers": fmt.Sprint(len(reg))})
	for _, ov := range reg.Overlaps() {
		logger.Warn("registry", "marker text contains another marker; earlier entry wins on shared lines",
			map[string]string{"outer": string(ov.Outer), "inner": string(ov.Inner)})
	}

	// 切分
	stimer := logger.Start("splitter", "split")
	out := comp.Splitter.Split(bundle.Text, reg)
	stimer.Finish("split", int64(out.Len()))
	for _, id := range missing(reg, out) {
		logger.DebugStart("splitter", "marker not found", string(id), nil)
	}

	set.Terminal.RunStart(bundle.Source, out.Len(), set.DryRun)
	started = true

	// 写出
	wtimer := logger.Start("writer", "materialize")
	if set.DryRun {
		rep, err = materialize.Plan(out, comp.Destination)
	} else {
		rep, err = materialize.Write(ctx, out, comp.Destination, comp.Destination)
	}
	msg := "artifact written"
	if set.DryRun {
		msg = "artifact planned"
	}
	for _, e := range rep.Entries {
		logger.Artifact("writer", msg, string(e.ID), map[string]string{
			"location": string(e.Location),
			"lines":    strconv.Itoa(e.Lines),
		})
		set.Terminal.Artifact(string(e.ID), string(e.Location), e.Lines)
	}
	if err != nil {
		logger.ErrorWith("writer", string(diag.Classify(err)), err.Error(), wtimer.Since(), failedID(out, rep), nil)
		if errors.Is(err, contract.ErrNoSections) {
			return rep, err
		}
		return rep, fmt.Errorf("materialize: %w", err)
	}
	wtimer.Finish("materialize", int64(len(rep.Entries)))
	return rep, nil
}

func sanity(c Components) error {
	if c.Reader == nil || c.Splitter == nil || c.Destination == nil {
		return errors.New("nil component")
	}
	return nil
}

// chooseRegistry 返回生效的标记表及其来源标签。
func chooseRegistry(explicit, fromBundle contract.Registry) (contract.Registry, string) {
	if len(explicit) > 0 {
		return explicit, "config"
	}
	if len(fromBundle) > 0 {
		return fromBundle, "frontmatter"
	}
	return nil, "none"
}

// missing 列出未命中的标识（按注册顺序）。
func missing(reg contract.Registry, out *contract.OutputMap) []contract.ArtifactID {
	var ids []contract.ArtifactID
	for _, m := range reg {
		if _, ok := out.Get(m.ID); !ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// failedID 返回首个未出现在报告中的工件标识。
func failedID(out *contract.OutputMap, rep contract.Report) string {
	ids := out.IDs()
	if len(rep.Entries) < len(ids) {
		return string(ids[len(rep.Entries)])
	}
	return ""
}
