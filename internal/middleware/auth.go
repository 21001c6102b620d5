package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/certmgmt/backend/internal/domain"
	"github.com/certmgmt/backend/internal/response"
)

const securityContextKey = "securityContext"

var errMissingBearer = errors.New("missing bearer token")

type AuthMiddleware struct {
	keyfunc    jwt.Keyfunc
	parser     *jwt.Parser
	rolesClaim string
	authorizer domain.RoleAuthorizer
	logger     *slog.Logger
}

type AuthMiddlewareConfig struct {
	Keyfunc    jwt.Keyfunc
	Issuer     string
	Audience   string
	RolesClaim string
	Authorizer domain.RoleAuthorizer
	Logger     *slog.Logger
}

func NewAuthMiddleware(cfg AuthMiddlewareConfig) *AuthMiddleware {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &AuthMiddleware{
		keyfunc:    cfg.Keyfunc,
		parser:     jwt.NewParser(opts...),
		rolesClaim: cfg.RolesClaim,
		authorizer: cfg.Authorizer,
		logger:     cfg.Logger,
	}
}

// NewJWKSKeyfunc resolves signing keys from a remote JWKS endpoint, refreshing
// them in the background until ctx is cancelled.
func NewJWKSKeyfunc(ctx context.Context, url string, refresh time.Duration) (jwt.Keyfunc, error) {
	storage, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Ctx:             ctx,
		RefreshInterval: refresh,
		ValidateOptions: jwkset.JWKValidateOptions{SkipAll: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS storage: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	return kf.Keyfunc, nil
}

// HMACKeyfunc verifies HS256 tokens against a shared secret.
func HMACKeyfunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}
}

func (m *AuthMiddleware) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := m.authenticate(c)
		if errors.Is(err, errMissingBearer) {
			return response.Unauthorized(c, "authentication required")
		}
		if err != nil {
			m.logger.Debug("token rejected", "error", err, "trace_id", GetTraceID(c))
			return response.Unauthorized(c, "invalid or expired token")
		}

		SetSecurityContext(c, sc)

		return c.Next()
	}
}

func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := m.authenticate(c)
		if err != nil {
			return c.Next()
		}

		SetSecurityContext(c, sc)

		return c.Next()
	}
}

// RequirePrivilege must run after Require.
func (m *AuthMiddleware) RequirePrivilege(privilege domain.Privilege) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc := GetSecurityContext(c)
		if sc == nil {
			return response.Unauthorized(c, "authentication required")
		}

		for _, role := range sc.PlatformRoleIDs {
			if m.authorizer.RoleHasPrivilege(role, privilege) {
				return c.Next()
			}
		}

		m.logger.Info("privilege denied", "user", sc.Username, "privilege", privilege, "trace_id", GetTraceID(c))
		return response.Forbidden(c, fmt.Sprintf("missing privilege %s", privilege))
	}
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*domain.SecurityContext, error) {
	raw := bearerToken(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return nil, errMissingBearer
	}

	claims := jwt.MapClaims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, m.keyfunc); err != nil {
		return nil, err
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("token has no subject")
	}

	username := subject
	if preferred, ok := claims["preferred_username"].(string); ok && preferred != "" {
		username = preferred
	}

	return &domain.SecurityContext{
		Username:        username,
		ClientID:        clientID(claims),
		PlatformRoleIDs: roleIDs(claims[m.rolesClaim]),
	}, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func clientID(claims jwt.MapClaims) string {
	for _, key := range []string{"azp", "client_id"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// roleIDs accepts either a space separated string or a JSON array.
func roleIDs(claim interface{}) []string {
	switch v := claim.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}

func SetSecurityContext(c *fiber.Ctx, sc *domain.SecurityContext) {
	c.Locals(securityContextKey, sc)
}

func GetSecurityContext(c *fiber.Ctx) *domain.SecurityContext {
	sc, ok := c.Locals(securityContextKey).(*domain.SecurityContext)
	if !ok {
		return nil
	}
	return sc
}
