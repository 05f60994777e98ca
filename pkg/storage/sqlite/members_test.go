package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/team"
)

func TestStore_Members(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	alice, _ := team.NewMember("proj", "alice", team.RoleOwner, base)
	bob, _ := team.NewMember("proj", "bob", "", base.Add(time.Minute))
	if err := s.AddMembers(ctx, []team.Member{bob, alice}); err != nil {
		t.Fatal(err)
	}

	dup, _ := team.NewMember("proj", "alice", team.RoleViewer, base)
	if err := s.AddMembers(ctx, []team.Member{dup}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("duplicate add error = %v, want ErrValidation", err)
	}

	list, err := s.ListMembers(ctx, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].UserID != "alice" || list[1].Role != team.RoleMember {
		t.Fatalf("ListMembers = %+v", list)
	}
	if !list[0].JoinedAt.Equal(base) {
		t.Errorf("joined at = %v, want %v", list[0].JoinedAt, base)
	}

	res, err := s.RemoveMembers(ctx, []string{alice.ID, "member_missing"})
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedCount != 1 || len(res.NotFoundIDs) != 1 || res.NotFoundIDs[0] != "member_missing" {
		t.Errorf("RemoveMembers = %+v", res)
	}

	other, err := s.ListMembers(ctx, "elsewhere")
	if err != nil || len(other) != 0 {
		t.Errorf("ListMembers(elsewhere) = %v, %v", other, err)
	}
}
