package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/pkg/api"
)

// CreateGroup creates a group with the caller as a member.
func (s *LedgerService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, toConnectError("CreateGroup", apperr.Invalid("", "name", "", "group name is required"))
	}

	members := []string{userID}
	for _, m := range req.Msg.Members {
		m = strings.TrimSpace(m)
		if m != "" && !contains(members, m) {
			members = append(members, m)
		}
	}

	g := &models.Group{Name: name, Members: members}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, toConnectError("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", g.ID, "name", g.Name, "members", len(g.Members))
	return connect.NewResponse(&api.CreateGroupResponse{Group: api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Members:   g.Members,
		CreatedAt: g.CreatedAt,
	}}), nil
}

// SetRelationship records the caller's relationship with another user.
// Peer-to-peer settlements need it to be accepted.
func (s *LedgerService) SetRelationship(ctx context.Context, req *connect.Request[api.SetRelationshipRequest]) (*connect.Response[api.SetRelationshipResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var errs apperr.ValidationErrors
	friend := strings.TrimSpace(req.Msg.Friend)
	if friend == "" {
		errs = append(errs, apperr.Invalid("", "friend", "", "friend is required")...)
	} else if friend == userID {
		errs = append(errs, apperr.Invalid(friend, "friend", friend, "cannot befriend yourself")...)
	}
	status := models.RelationshipStatus(req.Msg.Status)
	if status != models.RelationshipPending && status != models.RelationshipAccepted {
		errs = append(errs, apperr.Invalid("", "status", req.Msg.Status, "status must be pending or accepted")...)
	}
	if err := errs.OrNil(); err != nil {
		return nil, toConnectError("SetRelationship", err)
	}

	a, b := models.CanonicalPair(userID, friend)
	if err := s.store.PutRelationship(ctx, &models.Relationship{UserA: a, UserB: b, Status: status}); err != nil {
		return nil, toConnectError("SetRelationship", err)
	}
	stored, err := s.store.GetRelationship(ctx, a, b)
	if err != nil {
		return nil, toConnectError("SetRelationship", err)
	}

	slog.Info("Relationship updated", "user_a", stored.UserA, "user_b", stored.UserB, "status", stored.Status)
	return connect.NewResponse(&api.SetRelationshipResponse{Relationship: api.Relationship{
		UserA:     stored.UserA,
		UserB:     stored.UserB,
		Status:    string(stored.Status),
		UpdatedAt: stored.UpdatedAt,
	}}), nil
}
