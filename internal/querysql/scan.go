package querysql

import (
	"database/sql"
	"fmt"

	"github.com/roach88/qsearch/internal/schema"
)

// scanRows maps every row onto a new T by column name. Columns without a
// matching field are read and discarded.
func scanRows[T any](rows *sql.Rows, s *schema.Schema) ([]T, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []T
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		var item T
		for i, col := range cols {
			if _, err := s.Assign(&item, col, values[i]); err != nil {
				return nil, fmt.Errorf("map row: %w", err)
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
