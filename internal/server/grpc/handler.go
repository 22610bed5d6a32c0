package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/redact"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
)

func stringField(in *structpb.Struct, name string) string {
	if v, ok := in.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func (s *OpsGRPCServer) SeedMeme(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	agentID := stringField(in, "agentId")
	if agentID == "" {
		return nil, status.Error(codes.InvalidArgument, "agentId is required")
	}
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, status.Error(codes.NotFound, "agent not found")
	}

	if _, err := s.agents.Profile(ctx, agentID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, "agent not found")
		}
		return nil, s.mapError(ctx, err)
	}

	m, err := s.seeder.Generate(ctx, services.GenerateRequest{
		Owner:         models.AgentOwner(agentID),
		Concept:       stringField(in, "concept"),
		TopCaption:    stringField(in, "topCaption"),
		BottomCaption: stringField(in, "bottomCaption"),
		Internal:      true,
	})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Seeded meme", "meme_id", m.ID, "agent_id", agentID, "operator", operatorFrom(ctx))

	return structpb.NewStruct(map[string]any{
		"id":         m.ID,
		"imageUrl":   m.ImageURL,
		"caption":    m.Caption,
		"promptUsed": m.PromptUsed,
		"modelUsed":  m.ModelUsed,
		"createdAt":  m.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *OpsGRPCServer) ReconcileOrphans(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	grace := s.defaultGrace
	if v, ok := in.GetFields()["graceSeconds"]; ok {
		if secs := v.GetNumberValue(); secs > 0 {
			grace = time.Duration(secs * float64(time.Second))
		}
	}

	cleaned, err := s.reconciler.ReconcileOrphans(ctx, grace)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.logger.Info(ctx, "Reconciled orphans", "cleaned", cleaned, "grace", grace.String(), "operator", operatorFrom(ctx))

	return structpb.NewStruct(map[string]any{"cleaned": cleaned})
}

// mapError converts service errors to statuses. Unknown failures are logged
// and reported without detail.
func (s *OpsGRPCServer) mapError(ctx context.Context, err error) error {
	var sre *common.SafetyRejectedError
	switch {
	case errors.As(err, &sre):
		return status.Error(codes.InvalidArgument, sre.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrMissingProviderKey):
		return status.Error(codes.FailedPrecondition, "no fallback provider key configured")
	case errors.Is(err, common.ErrProviderAuthRejected):
		return status.Error(codes.FailedPrecondition, "the image provider rejected the fallback key")
	case errors.Is(err, common.ErrProviderTimeout):
		return status.Error(codes.DeadlineExceeded, "the image provider did not respond in time")
	case errors.Is(err, common.ErrPayloadTooLarge):
		return status.Error(codes.ResourceExhausted, "generated image too large")
	}

	s.logger.Error(ctx, "ops call failed", "error", redact.Error(err))
	return status.Error(codes.Internal, "internal error")
}
