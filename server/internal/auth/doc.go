// Package auth enforces the server's API key on both listeners.
//
// An Authenticator built from (mode, header, key) provides a gRPC unary and
// stream interceptor that read the key from incoming metadata, and an HTTP
// middleware that reads it from the request header of the same name.
// Both compare in constant time.
//
// When mode != "apikey" or key == "", all calls pass through (local
// development with auth disabled). A missing or incorrect key yields
// codes.Unauthenticated over gRPC and 401 over HTTP.
package auth
