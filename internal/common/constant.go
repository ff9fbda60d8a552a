package common

// AuthorizationHeaderName is the gRPC metadata key carrying the access token
// as "Bearer <token>".
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in the authorization metadata value.
const BearerPrefix = "Bearer "
