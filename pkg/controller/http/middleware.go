package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

type ctxUserKey struct{}

func contextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, user)
}

func userFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxUserKey{}).(*model.User)
	return user
}

// tokenExtractor returns the raw identity token of a request, or "" when absent
type tokenExtractor func(r *http.Request) string

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func queryToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return bearerToken(r)
}

// authMiddleware verifies the identity token and loads the caller, creating the user on
// first sight
func (s *Server) authMiddleware(extract tokenExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			claims, err := s.verifier.Verify(ctx, extract(r))
			if err != nil {
				s.handleError(ctx, w, err)
				return
			}

			user, err := s.uc.User.EnsureUser(ctx, claims)
			if err != nil {
				s.handleError(ctx, w, goerr.Wrap(err, "failed to load caller"))
				return
			}

			ctx = contextWithUser(ctx, user)
			ctx = logging.With(ctx, logging.From(ctx).With("user_id", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
