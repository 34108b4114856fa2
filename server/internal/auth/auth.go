package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Authenticator checks the API key presented in gRPC metadata or an HTTP
// header against the configured key.
//
// When mode != "apikey" or key == "", every call passes through.
type Authenticator struct {
	mode   string
	header string
	key    string
	exempt map[string]bool
}

// New returns an Authenticator. header is the gRPC metadata key and HTTP
// header name; it should be lowercase since gRPC normalises metadata keys.
func New(mode, header, key string) Authenticator {
	return Authenticator{mode: mode, header: header, key: key}
}

// Exempt returns a copy of a that lets requests for the given HTTP paths
// through without a key.
func (a Authenticator) Exempt(paths ...string) Authenticator {
	m := make(map[string]bool, len(a.exempt)+len(paths))
	for p := range a.exempt {
		m[p] = true
	}
	for _, p := range paths {
		m[p] = true
	}
	a.exempt = m
	return a
}

// Enabled reports whether keys are enforced.
func (a Authenticator) Enabled() bool {
	return a.mode == "apikey" && a.key != ""
}

func (a Authenticator) valid(got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(a.key)) == 1
}

func (a Authenticator) checkMetadata(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(a.header)
	if len(vals) == 0 || !a.valid(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

// UnaryInterceptor enforces the key on unary calls. A missing, empty or
// incorrect key returns codes.Unauthenticated.
func (a Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.Enabled() {
			return handler(ctx, req)
		}
		if err := a.checkMetadata(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor enforces the key on streaming calls such as health Watch.
func (a Authenticator) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !a.Enabled() {
			return handler(srv, ss)
		}
		if err := a.checkMetadata(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// Middleware enforces the key on HTTP requests and answers 401 with a JSON
// error body when it is missing or wrong.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || a.exempt[r.URL.Path] || a.valid(r.Header.Get(a.header)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
	})
}

// APIKeyInterceptor is shorthand for New(mode, header, key).UnaryInterceptor().
func APIKeyInterceptor(mode, header, key string) grpc.UnaryServerInterceptor {
	return New(mode, header, key).UnaryInterceptor()
}
