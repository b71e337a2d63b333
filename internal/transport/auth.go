package transport

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Authenticate returns middleware that reads the bearer token, derives the
// security state from its claims and stores it in the request context. The
// token's signature is not checked here; the evidence engine verifies every
// token it receives. Requests without a token proceed anonymously unless
// the identity configuration requires one.
func Authenticate(cfg config.IdentityConfig) func(http.Handler) http.Handler {
	parser := jwt.NewParser()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				if cfg.RequireToken {
					WriteError(w, model.NewUnauthorizedError("Missing authorization header"))
					return
				}
				next.ServeHTTP(w, r.WithContext(model.WithSecurityState(r.Context(), model.SecurityState{})))
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				WriteError(w, model.NewUnauthorizedError("Invalid authorization header format"))
				return
			}
			tokenStr := strings.TrimSpace(auth[7:])

			sec, err := securityState(parser, cfg, tokenStr)
			if err != nil {
				WriteError(w, model.NewUnauthorizedError(classifyJWTError(err)))
				return
			}
			next.ServeHTTP(w, r.WithContext(model.WithSecurityState(r.Context(), sec)))
		})
	}
}

// securityState decodes the token's claims into a SecurityState carrying the
// raw token for forwarding.
func securityState(parser *jwt.Parser, cfg config.IdentityConfig, tokenStr string) (model.SecurityState, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return model.SecurityState{}, err
	}
	if exp, err := claims.GetExpirationTime(); err != nil {
		return model.SecurityState{}, err
	} else if exp != nil && time.Now().After(exp.Add(clockSkew)) {
		return model.SecurityState{}, jwt.ErrTokenExpired
	}

	usernameClaim := cfg.UsernameClaim
	if usernameClaim == "" {
		usernameClaim = "sub"
	}
	username := claimString(claims, usernameClaim)
	if username == "" {
		return model.SecurityState{}, errMissingUsername
	}
	return model.SecurityState{
		Username:    username,
		Authorities: model.AuthoritySet(claimStrings(claims, cfg.AuthoritiesClaim)),
		Token:       tokenStr,
	}, nil
}

// clockSkew is the leeway allowed on token expiry.
const clockSkew = 30 * time.Second

var errMissingUsername = errors.New("token has no username claim")

func classifyJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Malformed token"
	case errors.Is(err, errMissingUsername):
		return "Token does not identify a user"
	default:
		return "Invalid token"
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

// claimStrings reads a claim holding either a JSON array of strings or a
// space separated string, as OAuth2 "scope" claims are.
func claimStrings(claims jwt.MapClaims, key string) []string {
	if key == "" {
		return nil
	}
	switch v := claims[key].(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
