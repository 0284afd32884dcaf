package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	prolink_errors "prolink-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService verifies the bearer tokens issued by the account service. Registration
// and login live outside this process; only the signing secret is shared.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(secret string, accessTTL time.Duration) *AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &AuthService{
		jwtSecret: []byte(secret),
		accessTTL: accessTTL,
	}
}

// ScopeNotificationsWrite lets a caller raise notifications for other users. Only
// collaborating services (reviews, moderation) hold it; user tokens never do.
const ScopeNotificationsWrite = "notifications:write"

type AccessClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"sid,omitempty"`
	// Scope is a space separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller extracted from a valid token.
type Identity struct {
	UserID    uuid.UUID
	SessionID string
	Scopes    []string
}


func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, prolink_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, prolink_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, prolink_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, prolink_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate parses the token and resolves the caller's user id.
func (s *AuthService) Authenticate(tokenString string) (Identity, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID == uuid.Nil {
		return Identity{}, prolink_errors.ErrUnauthorized
	}
	return Identity{UserID: userID, SessionID: claims.SessionID, Scopes: strings.Fields(claims.Scope)}, nil
}

// IssueAccessToken signs a token for userID with the given scopes. Used by tooling and
// tests; production tokens come from the account service.
func (s *AuthService) IssueAccessToken(userID uuid.UUID, sessionID string, scopes ...string) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		UserID:    userID.String(),
		SessionID: sessionID,
		Scope:     strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, prolink_errors.ErrInvalidInput):
		return 400
	case errors.Is(err, prolink_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, prolink_errors.ErrForbidden):
		return 403
	case errors.Is(err, prolink_errors.ErrNotFound):
		return 404
	case errors.Is(err, prolink_errors.ErrAlreadyExists),
		errors.Is(err, prolink_errors.ErrConflict),
		errors.Is(err, prolink_errors.ErrDuplicateReaction),
		errors.Is(err, prolink_errors.ErrThreadClosed):
		return 409
	case errors.Is(err, prolink_errors.ErrRateLimited):
		return 429
	case errors.Is(err, prolink_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

// ErrorCode is the machine-readable code rendered next to an error message.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, prolink_errors.ErrInvalidInput):
		return "VALIDATION_FAILED"
	case errors.Is(err, prolink_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, prolink_errors.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, prolink_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, prolink_errors.ErrDuplicateReaction):
		return "DUPLICATE_REACTION"
	case errors.Is(err, prolink_errors.ErrThreadClosed):
		return "THREAD_CLOSED"
	case errors.Is(err, prolink_errors.ErrAlreadyExists), errors.Is(err, prolink_errors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, prolink_errors.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, prolink_errors.ErrServiceUnavailable):
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var sessionIDKey ctxKey = "session_id"
var scopesKey ctxKey = "scopes"

func WithUserContext(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id.UserID)
	if id.SessionID != "" {
		ctx = context.WithValue(ctx, sessionIDKey, id.SessionID)
	}
	if len(id.Scopes) > 0 {
		ctx = context.WithValue(ctx, scopesKey, id.Scopes)
	}
	return ctx
}

// HasScope reports whether the authenticated caller in ctx was granted scope.
func HasScope(ctx context.Context, scope string) bool {
	scopes, _ := ctx.Value(scopesKey).([]string)
	return slices.Contains(scopes, scope)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(sessionIDKey).(string)
	return value, ok
}
