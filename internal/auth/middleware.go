package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlassist/sqlassist/internal/observability"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext reports the caller admitted by Middleware. Requests
// served without auth carry no identity and are audited without a client.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// Middleware admits requests whose X-API-Key header or bearer token is known
// to validator. Rejections answer 401 in the API error shape and are counted
// by reason.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			apiKey := apiKeyFrom(r.Header)
			if apiKey == "" {
				reject(w, r, observability.AuthRejectMissingKey, "missing API key")
				return
			}

			identity, ok := validator.Validate(ctx, apiKey)
			if !ok {
				logger.WarnContext(ctx, "api key rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				reject(w, r, observability.AuthRejectInvalidKey, "invalid API key")
				return
			}

			logger.DebugContext(ctx, "api key accepted", slog.String("client_id", identity.ClientID))
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// apiKeyFrom prefers X-API-Key, which the CLI sends, over an Authorization
// bearer token. The scheme name is case-insensitive.
func apiKeyFrom(header http.Header) string {
	if key := strings.TrimSpace(header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func reject(w http.ResponseWriter, r *http.Request, reason, message string) {
	observability.IncrementAuthRejection(reason)
	w.Header().Set("WWW-Authenticate", `Bearer realm="sqlassist"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
