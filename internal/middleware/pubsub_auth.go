package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// PubSubPushAuth admits Pub/Sub push requests to the dead-letter endpoint.
// Pub/Sub signs each push with an OIDC token for the push service account;
// the token audience must be the endpoint URL.
type PubSubPushAuth struct {
	Audience       string
	ServiceAccount string
	// SkipVerification is set against the emulator, which sends no token.
	SkipVerification bool

	verify func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
	logger zerolog.Logger
}

func NewPubSubPushAuth(audience, serviceAccount string, skipVerification bool, logger zerolog.Logger) *PubSubPushAuth {
	return &PubSubPushAuth{
		Audience:         audience,
		ServiceAccount:   serviceAccount,
		SkipVerification: skipVerification,
		verify:           idtoken.Validate,
		logger:           logger.With().Str("middleware", "pubsub_push_auth").Logger(),
	}
}

func (a *PubSubPushAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.SkipVerification {
			next.ServeHTTP(w, r)
			return
		}
		if status, msg := a.check(r); status != 0 {
			http.Error(w, msg, status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check returns a non-zero status when the request must be refused.
func (a *PubSubPushAuth) check(r *http.Request) (int, string) {
	if a.Audience == "" || a.ServiceAccount == "" {
		a.logger.Error().Msg("Push auth has no audience or service account; refusing dead-letter pushes")
		return http.StatusInternalServerError, "Configuration error: audience or service account not set"
	}

	token, ok := bearerToken(r)
	if !ok {
		a.logger.Warn().Msg("Dead-letter push without a bearer token")
		return http.StatusUnauthorized, "Unauthorized: malformed authorization header"
	}

	payload, err := a.verify(r.Context(), token, a.Audience)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Dead-letter push token rejected")
		return http.StatusUnauthorized, "Unauthorized: invalid token"
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email != a.ServiceAccount || !verified {
		a.logger.Warn().
			Str("token_email", email).
			Bool("email_verified", verified).
			Str("expected_email", a.ServiceAccount).
			Msg("Dead-letter push signed by an unexpected account")
		return http.StatusForbidden, "Forbidden: token is not from the push service account"
	}
	return 0, ""
}
