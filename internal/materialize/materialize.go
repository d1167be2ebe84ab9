// Package materialize 将切分结果逐个落地为独立工件。
//
// 约束：按 OutputMap 顺序串行写出；首个失败立即中止，后续工件不再尝试；
// 已成功的工件保留在返回的 Report 中（不回滚）。
// 写入前先解析全部位置；两个标识落到同一位置时整批拒绝，不写任何工件。
package materialize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bundlesplit/pkg/contract"
)

// Write 依次解析并写出每个分段，返回逐工件报告。
// 空映射返回 ErrNoSections，且不做任何解析或写入。
func Write(ctx context.Context, out *contract.OutputMap, res contract.Resolver, w contract.Writer) (contract.Report, error) {
	if out.Len() == 0 {
		return contract.Report{}, contract.ErrNoSections
	}
	if res == nil || w == nil {
		return contract.Report{}, fmt.Errorf("%w: resolver and writer are required", contract.ErrStorage)
	}
	secs := out.Sections()
	locs, err := locate(secs, res)
	if err != nil {
		return contract.Report{}, err
	}
	rep := contract.Report{Entries: make([]contract.ReportEntry, 0, len(secs))}
	for i, s := range secs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		loc := locs[i]
		if err := w.Write(ctx, loc, strings.NewReader(s.Content)); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return rep, err
			}
			return rep, fmt.Errorf("%w: %s: %w", contract.ErrStorage, s.ID, err)
		}
		rep.Entries = append(rep.Entries, contract.ReportEntry{ID: s.ID, Location: loc, Lines: contract.CountLines(s.Content)})
	}
	return rep, nil
}

// Plan 仅解析位置与统计行数，不写入（dry-run）。
func Plan(out *contract.OutputMap, res contract.Resolver) (contract.Report, error) {
	if out.Len() == 0 {
		return contract.Report{}, contract.ErrNoSections
	}
	if res == nil {
		return contract.Report{}, fmt.Errorf("%w: resolver is required", contract.ErrStorage)
	}
	secs := out.Sections()
	locs, err := locate(secs, res)
	if err != nil {
		return contract.Report{}, err
	}
	rep := contract.Report{Entries: make([]contract.ReportEntry, 0, len(secs))}
	for i, s := range secs {
		rep.Entries = append(rep.Entries, contract.ReportEntry{ID: s.ID, Location: locs[i], Lines: contract.CountLines(s.Content)})
	}
	return rep, nil
}

// locate 按映射顺序解析全部位置；同一位置被两个标识占用时返回 ErrPathInvalid。
func locate(secs []contract.Section, res contract.Resolver) ([]contract.Location, error) {
	locs := make([]contract.Location, len(secs))
	seen := make(map[contract.Location]contract.ArtifactID, len(secs))
	for i, s := range secs {
		loc, err := resolve(res, s.ID)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[loc]; dup {
			return nil, fmt.Errorf("%w: %s and %s both resolve to %s", contract.ErrPathInvalid, prev, s.ID, loc)
		}
		seen[loc] = s.ID
		locs[i] = loc
	}
	return locs, nil
}

// resolve 保留 ErrPathInvalid 分类；其他解析失败归为 ErrStorage。
func resolve(res contract.Resolver, id contract.ArtifactID) (contract.Location, error) {
	loc, err := res.Resolve(id)
	if err == nil {
		return loc, nil
	}
	if errors.Is(err, contract.ErrPathInvalid) {
		return "", fmt.Errorf("%s: %w", id, err)
	}
	return "", fmt.Errorf("%w: %s: %w", contract.ErrStorage, id, err)
}
