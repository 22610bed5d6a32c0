package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/server/auth"
)

type ctxKey string

const operatorKey ctxKey = "operator"

// operatorFrom returns the token subject stored by operatorInterceptor.
func operatorFrom(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey).(string)
	return op
}

// operatorInterceptor requires an operator JWT on every ops method. Other
// services on the same server (health) stay open.
func (s *OpsGRPCServer) operatorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+OpsServiceName+"/") {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			token = strings.TrimPrefix(values[0], common.BearerPrefix)
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := auth.RequireOperator(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		if errors.Is(err, common.ErrUnauthorized) {
			return nil, status.Error(codes.PermissionDenied, "operator role required")
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	return handler(context.WithValue(ctx, operatorKey, claims.Subject), req)
}
