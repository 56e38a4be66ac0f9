package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qsearch/internal/fts"
	"github.com/roach88/qsearch/internal/qerr"
)

// IndexInfo describes a full-text index recorded in qsearch_indexes.
type IndexInfo struct {
	Index     string    `json:"index"`
	Table     string    `json:"table"`
	Key       string    `json:"key"`
	Columns   []string  `json:"columns"`
	BuildID   string    `json:"build_id"`
	RebuiltAt time.Time `json:"rebuilt_at"`
}

// EnsureFullTextIndex creates the FTS5 table for t if it is missing, keeps
// it in sync with triggers, rebuilds it from the entity table and records
// the build. The entity table must exist and t.Key must be its rowid
// alias.
func (s *Store) EnsureFullTextIndex(ctx context.Context, t fts.Table) (IndexInfo, error) {
	t = t.WithDefaults()
	if err := t.Validate(s.dialect); err != nil {
		return IndexInfo{}, err
	}
	if s.dialect.Name() != "sqlite" {
		return IndexInfo{}, qerr.New(qerr.CodeConfiguration, "full-text index tables are only maintained for sqlite, not %s", s.dialect.Name())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range indexStatements(s.dialect.QuoteIdent, t) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return IndexInfo{}, fmt.Errorf("create index %s: %w", t.Index, err)
		}
	}
	info, err := s.rebuild(ctx, tx, t)
	if err != nil {
		return IndexInfo{}, err
	}
	if err := tx.Commit(); err != nil {
		return IndexInfo{}, fmt.Errorf("commit index %s: %w", t.Index, err)
	}

	s.logger.Info("full-text index ready", "index", info.Index, "table", info.Table, "build_id", info.BuildID)
	return info, nil
}

// RebuildFullTextIndex repopulates a recorded index from its entity table.
func (s *Store) RebuildFullTextIndex(ctx context.Context, index string) (IndexInfo, error) {
	infos, err := s.FullTextIndexes(ctx)
	if err != nil {
		return IndexInfo{}, err
	}
	for _, info := range infos {
		if info.Index == index {
			return s.EnsureFullTextIndex(ctx, fts.Table{
				Name:        info.Table,
				Index:       info.Index,
				Key:         info.Key,
				TermColumns: info.Columns,
			})
		}
	}
	return IndexInfo{}, qerr.New(qerr.CodeConfiguration, "no full-text index named %q", index)
}

// FullTextIndexes lists the recorded indexes ordered by name.
func (s *Store) FullTextIndexes(ctx context.Context) ([]IndexInfo, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT index_name, table_name, key_column, columns, build_id, rebuilt_at
		FROM qsearch_indexes
		ORDER BY index_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	var out []IndexInfo
	for rows.Next() {
		var info IndexInfo
		var columns, rebuiltAt string
		if err := rows.Scan(&info.Index, &info.Table, &info.Key, &columns, &info.BuildID, &rebuiltAt); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		info.Columns = strings.Split(columns, ",")
		if info.RebuiltAt, err = time.Parse(time.RFC3339Nano, rebuiltAt); err != nil {
			return nil, fmt.Errorf("index %s: parse rebuilt_at: %w", info.Index, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// indexStatements returns the FTS5 table and the triggers that mirror
// writes on the entity table. External-content tables need the 'delete'
// command with the old values to drop entries.
func indexStatements(q func(string) string, t fts.Table) []string {
	idx, tbl := q(t.Index), q(t.Name)
	cols := make([]string, len(t.TermColumns))
	newCols := make([]string, len(t.TermColumns))
	oldCols := make([]string, len(t.TermColumns))
	for i, c := range t.TermColumns {
		cols[i] = q(c)
		newCols[i] = "new." + q(c)
		oldCols[i] = "old." + q(c)
	}
	colList := strings.Join(cols, ", ")
	key := q(t.Key)
	trigger := func(suffix string) string { return q(t.Index + "_" + suffix) }

	insertNew := fmt.Sprintf("INSERT INTO %s(rowid, %s) VALUES (new.%s, %s);", idx, colList, key, strings.Join(newCols, ", "))
	deleteOld := fmt.Sprintf("INSERT INTO %s(%s, rowid, %s) VALUES ('delete', old.%s, %s);", idx, idx, colList, key, strings.Join(oldCols, ", "))

	return []string{
		fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(%s, content=%s, content_rowid=%s)",
			idx, colList, literal(t.Name), literal(t.Key)),
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s AFTER INSERT ON %s BEGIN %s END", trigger("ai"), tbl, insertNew),
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s AFTER DELETE ON %s BEGIN %s END", trigger("ad"), tbl, deleteOld),
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s AFTER UPDATE ON %s BEGIN %s %s END", trigger("au"), tbl, deleteOld, insertNew),
	}
}

func newBuildID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) rebuild(ctx context.Context, tx *sql.Tx, t fts.Table) (IndexInfo, error) {
	idx := s.dialect.QuoteIdent(t.Index)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s(%s) VALUES ('rebuild')", idx, idx)); err != nil {
		return IndexInfo{}, fmt.Errorf("rebuild index %s: %w", t.Index, err)
	}

	id, err := s.buildID()
	if err != nil {
		return IndexInfo{}, fmt.Errorf("build id: %w", err)
	}
	info := IndexInfo{
		Index:     t.Index,
		Table:     t.Name,
		Key:       t.Key,
		Columns:   t.TermColumns,
		BuildID:   id,
		RebuiltAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO qsearch_indexes (index_name, table_name, key_column, columns, build_id, rebuilt_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_name) DO UPDATE SET
			table_name = excluded.table_name,
			key_column = excluded.key_column,
			columns    = excluded.columns,
			build_id   = excluded.build_id,
			rebuilt_at = excluded.rebuilt_at
	`, info.Index, info.Table, info.Key, strings.Join(info.Columns, ","), info.BuildID, info.RebuiltAt.Format(time.RFC3339Nano))
	if err != nil {
		return IndexInfo{}, fmt.Errorf("record index %s: %w", t.Index, err)
	}
	return info, nil
}

func literal(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }
