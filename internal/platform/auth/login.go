package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DefaultIssuer is the iss claim of tokens issued by this service.
const DefaultIssuer = "clinic"

// TokenIssuer mints HS256 access tokens.
type TokenIssuer struct {
	cfg JWTConfig
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(cfg JWTConfig, ttl time.Duration) *TokenIssuer {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{cfg: cfg, ttl: ttl, now: time.Now}
}

// Issue signs a token for user carrying roles.
func (ti *TokenIssuer) Issue(user string, roles []string) (string, time.Time, error) {
	if len(ti.cfg.SigningKey) == 0 {
		return "", time.Time{}, fmt.Errorf("signing key is not configured")
	}
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user,
			Issuer:    ti.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        string    `json:"user"`
	Roles       []string  `json:"roles"`
}

// LoginHandler accepts any username and password. The optional role defaults
// to front_desk.
func (ti *TokenIssuer) LoginHandler(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user := strings.TrimSpace(req.Username)
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}
	role := req.Role
	if role == "" {
		role = RoleFrontDesk
	}
	if !ValidRole(role) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid role: %s", role))
	}
	token, exp, err := ti.Issue(user, []string{role})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		User:        user,
		Roles:       []string{role},
	})
}

// RegisterRoutes mounts POST /auth/login on g.
func (ti *TokenIssuer) RegisterRoutes(g *echo.Group) {
	g.POST("/auth/login", ti.LoginHandler)
}
