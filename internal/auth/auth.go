// Package auth turns bearer tokens into service principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/godilite/feedback-server/internal/service"
)

const (
	issuer          = "feedback-server"
	defaultTokenTTL = 8 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the principal. The subject is the user id.
type Claims struct {
	Role       string `json:"role"`
	Department string `json:"department"`
	jwt.RegisteredClaims
}

// Parser signs and verifies HS256 tokens with a shared secret.
type Parser struct {
	secret []byte
	ttl    time.Duration
}

func NewParser(secret string, ttl time.Duration) *Parser {
	if secret == "" {
		panic("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Parser{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for p.
func (a *Parser) Issue(p service.Principal) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:       string(p.Role),
		Department: p.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies token and returns its principal.
func (a *Parser) Parse(token string) (service.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return service.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return service.Principal{}, ErrInvalidToken
	}

	role := service.Role(claims.Role)
	if role != service.RoleAdmin && role != service.RoleStudent {
		return service.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	if claims.Subject == "" {
		return service.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return service.Principal{
		ID:         claims.Subject,
		Role:       role,
		Department: claims.Department,
	}, nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(service.Principal)
	return p, ok
}

// public lists method prefixes served without a token.
var public = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.v1.ServerReflection/",
	"/grpc.reflection.v1alpha.ServerReflection/",
}

// UnaryServerInterceptor authenticates every call from the "authorization:
// Bearer <token>" metadata entry and stores the principal in the context.
func UnaryServerInterceptor(parser *Parser, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		for _, prefix := range public {
			if strings.HasPrefix(info.FullMethod, prefix) {
				return handler(ctx, req)
			}
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		token, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		p, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			logger.Info("rejected token", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(WithPrincipal(ctx, p), req)
	}
}
