package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/team"
)

type memberInput struct {
	UserID string    `json:"userId"`
	Role   team.Role `json:"role"`
}

type addMembersArgs struct {
	ProjectPath string        `json:"projectPath"`
	UserID      string        `json:"userId"`
	Role        team.Role     `json:"role"`
	Members     []memberInput `json:"members"`
}

type bulkAddResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Created []team.Member `json:"created"`
}

// addMembers adds a single member, or a batch when members is set. A batch
// is all or nothing.
func (h *TaskHandler) addMembers(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[addMembersArgs]("project_member_add", args)
	if err != nil {
		return nil, err
	}

	bulk := len(in.Members) > 0
	inputs := in.Members
	if !bulk {
		inputs = []memberInput{{UserID: in.UserID, Role: in.Role}}
	}
	now := h.now()
	members := make([]team.Member, 0, len(inputs))
	for i, mi := range inputs {
		m, err := team.NewMember(in.ProjectPath, mi.UserID, mi.Role, now)
		if err != nil {
			if bulk {
				return nil, domain.Errorf(domain.ErrValidation, "project_member_add", "member %d: %v", i, err)
			}
			return nil, domain.Errorf(domain.ErrValidation, "project_member_add", "%v", err)
		}
		members = append(members, m)
	}
	if err := h.store.AddMembers(ctx, members); err != nil {
		return nil, err
	}
	h.logger.Info("project members added", "project", in.ProjectPath, "count", len(members))

	if !bulk {
		return members[0], nil
	}
	return bulkAddResult{
		Success: true,
		Message: fmt.Sprintf("Successfully added %d members", len(members)),
		Created: members,
	}, nil
}

type removeMembersArgs struct {
	MemberID  string   `json:"memberId"`
	MemberIDs []string `json:"memberIds"`
}

type removeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*team.RemoveResult
}

func (h *TaskHandler) removeMembers(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[removeMembersArgs]("project_member_remove", args)
	if err != nil {
		return nil, err
	}

	if len(in.MemberIDs) == 0 {
		res, err := h.store.RemoveMembers(ctx, []string{in.MemberID})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, domain.Errorf(domain.ErrNotFound, "project_member_remove", "member not found: %s", in.MemberID)
		}
		return removeResult{
			Success: true,
			Message: fmt.Sprintf("Member %s removed successfully", in.MemberID),
		}, nil
	}

	res, err := h.store.RemoveMembers(ctx, in.MemberIDs)
	if err != nil {
		return nil, err
	}
	return removeResult{
		Success:      true,
		Message:      fmt.Sprintf("Successfully removed %d members", res.DeletedCount),
		RemoveResult: &res,
	}, nil
}

type memberList struct {
	ProjectPath string        `json:"projectPath"`
	Members     []team.Member `json:"members"`
	Count       int           `json:"count"`
}

func (h *TaskHandler) listMembers(ctx context.Context, args json.RawMessage) (any, error) {
	in, err := decodeArgs[struct {
		ProjectPath string `json:"projectPath"`
	}]("project_member_list", args)
	if err != nil {
		return nil, err
	}
	members, err := h.store.ListMembers(ctx, in.ProjectPath)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []team.Member{}
	}
	return memberList{ProjectPath: in.ProjectPath, Members: members, Count: len(members)}, nil
}
