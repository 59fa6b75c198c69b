package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

const (
	// ActorHeader carries the actor ID when token authentication is disabled
	ActorHeader = "X-Actor-ID"

	actorContextKey = "actor"
)

// AuthConfig holds bearer-token settings
type AuthConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

// Authenticator resolves the calling actor from a bearer token (or the
// actor header when tokens are disabled) and looks up its role
type Authenticator struct {
	config AuthConfig
	roles  port.RoleResolver
	logger Logger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(config AuthConfig, roles port.RoleResolver, logger Logger) *Authenticator {
	return &Authenticator{
		config: config,
		roles:  roles,
		logger: logger,
	}
}

// IssueToken signs an HS256 token for actorID
func (a *Authenticator) IssueToken(actorID string, ttl time.Duration) (string, error) {
	if a.config.Secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   actorID,
		Issuer:    a.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.Secret))
}

func (a *Authenticator) parseToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.Secret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Middleware authenticates the request and stores the actor on the context
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var actorID string

		if a.config.Enabled {
			header := c.GetHeader("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if header == "" || !found {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
					Success: false,
					Error:   "missing bearer token",
				})
				return
			}

			id, err := a.parseToken(token)
			if err != nil {
				a.logger.Info("Rejected token", "error", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
					Success: false,
					Error:   "invalid token",
				})
				return
			}
			actorID = id
		} else {
			actorID = strings.TrimSpace(c.GetHeader(ActorHeader))
			if actorID == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
					Success: false,
					Error:   "missing " + ActorHeader + " header",
				})
				return
			}
		}

		role, err := a.roles.GetRole(c.Request.Context(), actorID)
		if err != nil {
			status := http.StatusInternalServerError
			message := "failed to resolve role"
			if errors.Is(err, port.ErrUnknownActor) {
				status = http.StatusForbidden
				message = "actor has no role"
			}
			a.logger.Info("Role lookup failed", "actor_id", actorID, "error", err)
			c.AbortWithStatusJSON(status, Response{Success: false, Error: message})
			return
		}

		c.Set(actorContextKey, entity.Actor{ID: actorID, Role: role})
		c.Next()
	}
}

// actorFrom returns the authenticated actor
func actorFrom(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}
