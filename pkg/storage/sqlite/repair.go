package sqlite

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// RepairResult reports what RepairRelationships found and fixed.
type RepairResult struct {
	Fixed  int      `json:"fixed"`
	Issues []string `json:"issues"`
}

// RepairRelationships finds tasks whose parent_path names no existing task.
// In dry-run mode it only reports them; otherwise it clears the dangling
// parent_path inside one immediate transaction.
func (s *Store) RepairRelationships(ctx context.Context, dryRun bool) (RepairResult, error) {
	db, err := s.handle("repairRelationships")
	if err != nil {
		return RepairResult{}, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT t1.path, t1.parent_path
		 FROM tasks t1
		 LEFT JOIN tasks t2 ON t1.parent_path = t2.path
		 WHERE t1.parent_path IS NOT NULL
		 AND t2.path IS NULL
		 ORDER BY t1.path`)
	if err != nil {
		return RepairResult{}, domain.WrapStorage("repairRelationships", err)
	}
	type orphan struct{ path, parent string }
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.path, &o.parent); err != nil {
			rows.Close()
			return RepairResult{}, domain.WrapStorage("repairRelationships", err)
		}
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return RepairResult{}, domain.WrapStorage("repairRelationships", err)
	}

	res := RepairResult{Issues: []string{}}
	for _, o := range orphans {
		res.Issues = append(res.Issues, fmt.Sprintf("Task %s has invalid parent_path: %s", o.path, o.parent))
	}
	if dryRun || len(orphans) == 0 {
		return res, nil
	}

	err = s.WithTx(ctx, func(tx *Tx) error {
		for _, o := range orphans {
			if _, err := tx.conn.ExecContext(ctx, `UPDATE tasks SET parent_path = NULL WHERE path = ?`, o.path); err != nil {
				return domain.WrapStorage("repairRelationships", err)
			}
			res.Fixed++
		}
		return nil
	})
	if err != nil {
		return RepairResult{Issues: res.Issues}, err
	}
	s.logger.Info("repaired task relationships", "fixed", res.Fixed)
	return res, nil
}
