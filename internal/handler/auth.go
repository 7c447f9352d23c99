package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	ctxCustomerID = "customer_id"
	ctxRole       = "role"
)

// Claims carries the customer id in the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// IssueToken signs an HS256 token. subject is the customer id, or any
// operator name for admins.
func (a *Authenticator) IssueToken(subject, role string) (string, error) {
	switch role {
	case RoleAdmin:
	case RoleCustomer:
		if _, err := strconv.ParseInt(subject, 10, 64); err != nil {
			return "", fmt.Errorf("customer subject %q is not a customer id", subject)
		}
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parse(header string) (*Claims, error) {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return nil, errors.New("missing bearer token")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// Authenticate rejects requests without a valid token and stores the
// caller's role and, for customers, the customer id.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c.GetHeader("Authorization"))
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}

		switch claims.Role {
		case RoleAdmin:
		case RoleCustomer:
			id, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || id <= 0 {
				response.Unauthorized(c, "token subject is not a customer id")
				return
			}
			c.Set(ctxCustomerID, id)
		default:
			response.Unauthorized(c, "unknown role")
			return
		}
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != role {
			response.Forbidden(c, "requires role "+role)
			return
		}
		c.Next()
	}
}

func customerID(c *gin.Context) int64 {
	return c.GetInt64(ctxCustomerID)
}
