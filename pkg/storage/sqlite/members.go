package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/team"
)

// AddMembers inserts members in one transaction. A user already in the
// project fails the whole batch with a validation error.
func (s *Store) AddMembers(ctx context.Context, members []team.Member) error {
	if _, err := s.handle("addMembers"); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, m := range members {
			var existing string
			err := tx.conn.QueryRowContext(ctx,
				`SELECT id FROM project_members WHERE project_path = ? AND user_id = ?`,
				m.ProjectPath, m.UserID).Scan(&existing)
			switch {
			case err == nil:
				return domain.Errorf(domain.ErrValidation, "addMember",
					"user %s is already a member of %s", m.UserID, m.ProjectPath)
			case !errors.Is(err, sql.ErrNoRows):
				return domain.WrapStorage("addMember", err)
			}
			if _, err := tx.conn.ExecContext(ctx,
				`INSERT INTO project_members (id, project_path, user_id, role, joined_at) VALUES (?, ?, ?, ?, ?)`,
				m.ID, m.ProjectPath, m.UserID, string(m.Role), m.JoinedAt.UnixMilli()); err != nil {
				return domain.WrapStorage("addMember", err)
			}
		}
		return nil
	})
}

// RemoveMembers deletes members by id, reporting the ids that did not exist.
func (s *Store) RemoveMembers(ctx context.Context, ids []string) (team.RemoveResult, error) {
	res := team.RemoveResult{NotFoundIDs: []string{}}
	if _, err := s.handle("removeMembers"); err != nil {
		return res, err
	}
	if len(ids) == 0 {
		return res, nil
	}
	err := s.WithTx(ctx, func(tx *Tx) error {
		for _, id := range ids {
			r, err := tx.conn.ExecContext(ctx, `DELETE FROM project_members WHERE id = ?`, id)
			if err != nil {
				return domain.WrapStorage("removeMember", err)
			}
			n, err := r.RowsAffected()
			if err != nil {
				return domain.WrapStorage("removeMember", err)
			}
			if n == 0 {
				res.NotFoundIDs = append(res.NotFoundIDs, id)
				continue
			}
			res.DeletedCount += int(n)
		}
		return nil
	})
	if err != nil {
		return team.RemoveResult{NotFoundIDs: []string{}}, err
	}
	return res, nil
}

// ListMembers returns the members of a project in join order.
func (s *Store) ListMembers(ctx context.Context, projectPath string) ([]team.Member, error) {
	db, err := s.handle("listMembers")
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, project_path, user_id, role, joined_at FROM project_members
		 WHERE project_path = ? ORDER BY joined_at, id`, projectPath)
	if err != nil {
		return nil, domain.WrapStorage("listMembers", err)
	}
	defer rows.Close()

	out := []team.Member{}
	for rows.Next() {
		var (
			m      team.Member
			role   string
			joined int64
		)
		if err := rows.Scan(&m.ID, &m.ProjectPath, &m.UserID, &role, &joined); err != nil {
			return nil, domain.WrapStorage("listMembers", err)
		}
		m.Role = team.Role(role)
		m.JoinedAt = time.UnixMilli(joined).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorage("listMembers", err)
	}
	return out, nil
}
