// Package common contains shared constants, sentinel errors and small helpers
// used across memeforge components.
package common

// AuthorizationHeaderName is the HTTP header / gRPC metadata key carrying the
// bearer credential.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the credential in AuthorizationHeaderName values.
const BearerPrefix = "Bearer "

// MaxImageBytes bounds any generated image accepted from an upstream provider.
const MaxImageBytes = 10 * 1024 * 1024
