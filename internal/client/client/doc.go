// Package client is the operator-side gRPC client of the memeforge ops API.
//
// Client is the transport-agnostic contract used by memectl; GRPCClient
// implements it over a grpc.ClientConn, attaching the operator token to every
// call and mapping status codes onto ErrUnavailable, ErrUnauthorized and
// ErrRejected.
package client
