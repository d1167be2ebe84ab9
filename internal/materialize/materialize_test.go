package materialize

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlesplit/pkg/contract"
	fswriter "bundlesplit/plugins/writer/filesystem"
	sqlwriter "bundlesplit/plugins/writer/sqlite"
)

// memStore: 测试用内存目标，记录写入顺序，可注入失败。
type memStore struct {
	data   map[contract.Location]string
	order  []contract.Location
	failAt contract.Location
}

func newMem() *memStore { return &memStore{data: map[contract.Location]string{}} }

func (m *memStore) Resolve(id contract.ArtifactID) (contract.Location, error) {
	if id == "../escape" {
		return "", contract.ErrPathInvalid
	}
	return contract.Location("out/" + string(id)), nil
}

func (m *memStore) Write(_ context.Context, loc contract.Location, r io.Reader) error {
	if loc == m.failAt {
		return errors.New("disk full")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.data[loc] = string(b)
	m.order = append(m.order, loc)
	return nil
}

func outMap(kv ...string) *contract.OutputMap {
	m := contract.NewOutputMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(contract.ArtifactID(kv[i]), kv[i+1])
	}
	return m
}

// TestWriteScenario 两个分段按顺序写出并报告行数
func TestWriteScenario(t *testing.T) {
	st := newMem()
	rep, err := Write(context.Background(), outMap("a.md", "line1\nline2", "b.md", "x"), st, st)
	require.NoError(t, err)
	want := []contract.ReportEntry{
		{ID: "a.md", Location: "out/a.md", Lines: 2},
		{ID: "b.md", Location: "out/b.md", Lines: 1},
	}
	if diff := cmp.Diff(want, rep.Entries); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, rep.TotalLines())
	assert.Equal(t, []contract.Location{"out/a.md", "out/b.md"}, st.order)
	assert.Equal(t, "line1\nline2", st.data["out/a.md"])
}

// TestWriteEmpty 空映射为配置错误，且不触碰目标
func TestWriteEmpty(t *testing.T) {
	st := newMem()
	_, err := Write(context.Background(), contract.NewOutputMap(), st, st)
	assert.ErrorIs(t, err, contract.ErrNoSections)
	_, err = Write(context.Background(), nil, st, st)
	assert.ErrorIs(t, err, contract.ErrNoSections)
	assert.Empty(t, st.order)
}

// TestWriteEmptyContent 空内容工件照常创建，行数为 0
func TestWriteEmptyContent(t *testing.T) {
	st := newMem()
	rep, err := Write(context.Background(), outMap("a.md", ""), st, st)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Entries[0].Lines)
	v, ok := st.data["out/a.md"]
	assert.True(t, ok)
	assert.Empty(t, v)
}

// TestWriteFailFast 首个存储失败中止，后续不再尝试
func TestWriteFailFast(t *testing.T) {
	st := newMem()
	st.failAt = "out/b.md"
	rep, err := Write(context.Background(), outMap("a.md", "1", "b.md", "2", "c.md", "3"), st, st)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrStorage)
	assert.Contains(t, err.Error(), "b.md")
	assert.Equal(t, []contract.Location{"out/a.md"}, st.order)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, contract.ArtifactID("a.md"), rep.Entries[0].ID)
}

// TestWriteResolveInvalid 解析越界保留 ErrPathInvalid
func TestWriteResolveInvalid(t *testing.T) {
	st := newMem()
	_, err := Write(context.Background(), outMap("../escape", "x", "b.md", "y"), st, st)
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
	assert.NotErrorIs(t, err, contract.ErrStorage)
	assert.Empty(t, st.order)
}

// TestWriteResolveOther 其他解析错误归为存储错误
func TestWriteResolveOther(t *testing.T) {
	st := newMem()
	res := contract.ResolverFunc(func(contract.ArtifactID) (contract.Location, error) {
		return "", errors.New("namespace unavailable")
	})
	_, err := Write(context.Background(), outMap("a.md", "x"), res, st)
	assert.ErrorIs(t, err, contract.ErrStorage)
}

// TestWriteCanceled 取消在工件之间生效
func TestWriteCanceled(t *testing.T) {
	st := newMem()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Write(ctx, outMap("a.md", "x"), st, st)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.order)
}

// TestPlan dry-run 不写入
func TestPlan(t *testing.T) {
	st := newMem()
	rep, err := Plan(outMap("a.md", "1\n2\n3", "b.md", ""), st)
	require.NoError(t, err)
	assert.Equal(t, []contract.ReportEntry{
		{ID: "a.md", Location: "out/a.md", Lines: 3},
		{ID: "b.md", Location: "out/b.md", Lines: 0},
	}, rep.Entries)
	assert.Empty(t, st.order)

	_, err = Plan(contract.NewOutputMap(), st)
	assert.ErrorIs(t, err, contract.ErrNoSections)
}

// TestWriteLocationCollision 两个标识解析到同一位置时整批拒绝，不写任何工件
func TestWriteLocationCollision(t *testing.T) {
	st := newMem()
	res := contract.ResolverFunc(func(id contract.ArtifactID) (contract.Location, error) {
		return contract.Location("out/" + path.Base(string(id))), nil
	})
	rep, err := Write(context.Background(), outMap("first.md", "0", "docs/agent.md", "A", "notes/agent.md", "B"), res, st)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
	assert.NotErrorIs(t, err, contract.ErrStorage)
	assert.Contains(t, err.Error(), "docs/agent.md")
	assert.Contains(t, err.Error(), "notes/agent.md")
	assert.Empty(t, rep.Entries)
	assert.Empty(t, st.order)

	_, err = Plan(outMap("docs/agent.md", "A", "notes/agent.md", "B"), res)
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
}

// TestWriteFlatCollisionFS 扁平输出下同名文件不会互相覆盖
func TestWriteFlatCollisionFS(t *testing.T) {
	dir := t.TempDir()
	w, err := fswriter.New(&fswriter.Options{OutputDir: dir})
	require.NoError(t, err)
	_, err = Write(context.Background(), outMap("docs/agent.md", "first", "notes/agent.md", "second"), w, w)
	require.ErrorIs(t, err, contract.ErrPathInvalid)
	_, statErr := os.Stat(filepath.Join(dir, "agent.md"))
	assert.True(t, os.IsNotExist(statErr), "no artifact may be written: %v", statErr)
}

// TestWriteKeyCollisionSQLite 规范化后同键的标识同样被拒绝
func TestWriteKeyCollisionSQLite(t *testing.T) {
	st, err := sqlwriter.New(&sqlwriter.Options{Path: filepath.Join(t.TempDir(), "out.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = Write(context.Background(), outMap("./a.md", "first", "a.md", "second"), st, st)
	require.ErrorIs(t, err, contract.ErrPathInvalid)
	_, err = st.Read(context.Background(), "a.md")
	assert.Error(t, err, "no row may be written")
}
