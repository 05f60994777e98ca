package sqlite

import (
	"context"
	"database/sql"
	"os"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// GetMetrics aggregates task counts and physical size for health reporting.
// Cache statistics are always zero here; caching lives above the store.
func (s *Store) GetMetrics(ctx context.Context) (domain.StorageMetrics, error) {
	db, err := s.handle("getMetrics")
	if err != nil {
		return domain.StorageMetrics{}, err
	}

	var (
		m                   domain.StorageMetrics
		total               int
		noteCount, depCount sql.NullInt64
		pageCount, pageSize int64
	)
	if err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN json_valid(notes) THEN json_array_length(notes) ELSE 0 END),
			SUM(CASE WHEN json_valid(dependencies) THEN json_array_length(dependencies) ELSE 0 END)
		FROM tasks`).Scan(&total, &noteCount, &depCount); err != nil {
		return domain.StorageMetrics{}, domain.WrapStorage("getMetrics", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return domain.StorageMetrics{}, domain.WrapStorage("getMetrics", err)
	}
	byStatus := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return domain.StorageMetrics{}, domain.WrapStorage("getMetrics", err)
		}
		byStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.StorageMetrics{}, domain.WrapStorage("getMetrics", err)
	}

	if err := db.QueryRowContext(ctx,
		`SELECT page_count, page_size FROM pragma_page_count(), pragma_page_size()`).Scan(&pageCount, &pageSize); err != nil {
		return domain.StorageMetrics{}, domain.WrapStorage("getMetrics", err)
	}

	m.Tasks = domain.TaskStats{
		Total:           total,
		ByStatus:        byStatus,
		NoteCount:       int(noteCount.Int64),
		DependencyCount: int(depCount.Int64),
	}
	m.Storage = domain.StorageStats{
		TotalSize: pageCount * pageSize,
		PageSize:  pageSize,
		PageCount: pageCount,
		WALSize:   s.walSize(),
	}
	return m, nil
}

func (s *Store) walSize() int64 {
	if s.dbPath == MemoryName {
		return 0
	}
	info, err := os.Stat(s.dbPath + "-wal")
	if err != nil {
		return 0
	}
	return info.Size()
}
