// Package sqlite 以 SQLite 表作为工件的键值命名空间：键为输出标识，值为完整内容。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bundlesplit/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Path: 数据库文件路径（必需）。
	Path string `json:"path"`
	// Table: 表名；默认 "artifacts"。仅允许 [A-Za-z_][A-Za-z0-9_]*。
	Table string `json:"table,omitempty"`
}

// Store 实现基于 SQLite 的目标介质。
type Store struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New 打开数据库并确保表存在。
func New(opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = "artifacts"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// 单写者：避免 database/sql 连接池引入并发写。
	db.SetMaxOpenConns(1)
	ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
	location   TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	lines      INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create table: %w", err)
	}
	return &Store{db: db, table: table, now: time.Now}, nil
}

var _ contract.Destination = (*Store)(nil)

// Resolve 将输出标识规范化为键；拒绝空标识与父级逃逸。
func (s *Store) Resolve(id contract.ArtifactID) (contract.Location, error) {
	key := contract.NormalizeArtifactID(string(id))
	if key == "." || key == ".." || strings.HasPrefix(string(key), "../") || strings.TrimSpace(string(id)) == "" {
		return "", contract.ErrPathInvalid
	}
	return contract.Location(key), nil
}

// Write 在单个事务内整体替换 loc 的内容。
func (s *Store) Write(ctx context.Context, loc contract.Location, r io.Reader) error {
	if strings.TrimSpace(string(loc)) == "" {
		return contract.ErrPathInvalid
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	content := string(data)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := `INSERT INTO ` + s.table + ` (location, content, lines, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(location) DO UPDATE SET content = excluded.content, lines = excluded.lines, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, q, string(loc), content, contract.CountLines(content), s.now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Read 返回 loc 的内容；不存在时返回 sql.ErrNoRows。
func (s *Store) Read(ctx context.Context, loc contract.Location) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM `+s.table+` WHERE location = ?`, string(loc)).Scan(&content)
	return content, err
}

// Close 释放数据库句柄。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
