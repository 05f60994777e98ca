package sqlite

import (
	"context"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// Vacuum rebuilds the database file, reclaiming free pages.
func (s *Store) Vacuum(ctx context.Context) error {
	return s.exec(ctx, "vacuum", `VACUUM`)
}

// Analyze refreshes the query planner statistics.
func (s *Store) Analyze(ctx context.Context) error {
	return s.exec(ctx, "analyze", `ANALYZE`)
}

// Checkpoint folds the write-ahead log back into the database and truncates it.
func (s *Store) Checkpoint(ctx context.Context) error {
	return s.exec(ctx, "checkpoint", `PRAGMA wal_checkpoint(TRUNCATE)`)
}

func (s *Store) exec(ctx context.Context, op, stmt string) error {
	db, err := s.handle(op)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, stmt)
	return domain.WrapStorage(op, err)
}
