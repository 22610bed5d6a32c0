package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/memeforge/internal/common"
	ops "github.com/dmitrijs2005/memeforge/internal/server/grpc"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	health      healthpb.HealthClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewOpsClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ops.OpsServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) SeedMeme(ctx context.Context, req SeedRequest) (*SeededMeme, error) {
	fields := map[string]any{
		"agentId": req.AgentID,
		"concept": req.Concept,
	}
	if req.TopCaption != "" {
		fields["topCaption"] = req.TopCaption
	}
	if req.BottomCaption != "" {
		fields["bottomCaption"] = req.BottomCaption
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	out := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, ops.SeedMemeMethod, in, out); err != nil {
		return nil, s.mapError(err)
	}

	get := func(k string) string { return out.GetFields()[k].GetStringValue() }
	return &SeededMeme{
		ID:        get("id"),
		ImageURL:  get("imageUrl"),
		Caption:   get("caption"),
		ModelUsed: get("modelUsed"),
		CreatedAt: get("createdAt"),
	}, nil
}

// ReconcileOrphans triggers a cleanup pass. A zero grace uses the server's
// configured period.
func (s *GRPCClient) ReconcileOrphans(ctx context.Context, grace time.Duration) (int, error) {
	fields := map[string]any{}
	if grace > 0 {
		fields["graceSeconds"] = grace.Seconds()
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return 0, err
	}

	out := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, ops.ReconcileOrphansMethod, in, out); err != nil {
		return 0, s.mapError(err)
	}
	return int(out.GetFields()["cleaned"].GetNumberValue()), nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable:
		return ErrUnavailable
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
