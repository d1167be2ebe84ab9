package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"bundlesplit/internal/pipeline"
	"bundlesplit/pkg/contract"
	"bundlesplit/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
// 标记表错误保留 ErrInvalidRegistry 分类。
func Validate(cfg Config) error {
	if err := cfg.Registry.Validate(); err != nil {
		return fmt.Errorf("config: registry: %w", err)
	}
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Input, validation.Required.Error(`is required (use "-" for stdin)`)),
		validation.Field(&cfg.RegistryFile,
			validation.When(len(cfg.Registry) > 0, validation.Empty.Error("cannot be combined with an inline registry"))),
		validation.Field(&cfg.Logging),
		validation.Field(&cfg.Components),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate 校验日志等级。
func (l Logging) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// Validate 校验组件名均已注册。
func (c Components) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Reader, validation.Required, validation.By(registered(registry.Reader))),
		validation.Field(&c.Splitter, validation.Required, validation.By(registered(registry.Splitter))),
		validation.Field(&c.Writer, validation.Required, validation.By(registered(registry.Writer))),
	)
}

func registered[F any](m map[string]F) validation.RuleFunc {
	return func(value any) error {
		name, _ := value.(string)
		if _, ok := m[name]; !ok {
			return validation.NewError("validation_not_registered", fmt.Sprintf("%q is not registered", name))
		}
		return nil
	}
}

// ResolveRegistry 返回生效的显式标记表：内联优先，其次外部文件；均无则为 nil
// （运行期回退到载荷 frontmatter）。
func ResolveRegistry(cfg Config) (contract.Registry, error) {
	if len(cfg.Registry) > 0 {
		return cfg.Registry.Clone(), nil
	}
	if cfg.RegistryFile != "" {
		return LoadRegistryFile(cfg.RegistryFile)
	}
	return nil, nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	reg, err := ResolveRegistry(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	r, err := registry.Reader[cfg.Components.Reader](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader %q: %w", cfg.Components.Reader, err)
	}
	s, err := registry.Splitter[cfg.Components.Splitter](cfg.Options.Splitter)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("splitter %q: %w", cfg.Components.Splitter, err)
	}
	// 目标最后构造：可能持有需要关闭的资源（sqlite）
	d, err := registry.Writer[cfg.Components.Writer](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer %q: %w", cfg.Components.Writer, err)
	}

	comp := pipeline.Components{Reader: r, Splitter: s, Destination: d}
	set := pipeline.Settings{
		Source:   cfg.Input,
		Registry: reg,
		DryRun:   cfg.IsDryRun(),
	}
	return comp, set, nil
}
