package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PrintTokenAudience scopes print credentials so they are never accepted as user sessions.
const PrintTokenAudience = "report-print"

var (
	// ErrPrintTokenInvalid indicates a malformed, expired or mis-scoped print credential.
	ErrPrintTokenInvalid = errors.New("invalid print token")
	// ErrPrintTokenUsed indicates the print credential was already redeemed.
	ErrPrintTokenUsed = errors.New("print token already used")
)

// PrintTokenService issues and redeems short-lived, single-use credentials for the printable view.
type PrintTokenService interface {
	Issue(ctx context.Context, assignmentID uint) (string, error)
	Redeem(ctx context.Context, token string) (uint, error)
}

type printTokenService struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewPrintTokenService constructs the credential service. Without Redis, tokens are only time-limited.
func NewPrintTokenService(secret string, ttl time.Duration, redisClient *redis.Client, logger zerolog.Logger) PrintTokenService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &printTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		redis:  redisClient,
		logger: logger.With().Str("component", "print_token_service").Logger(),
		now:    time.Now,
	}
}

func (s *printTokenService) Issue(_ context.Context, assignmentID uint) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("print token secret not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(assignmentID), 10),
		Audience:  jwt.ClaimStrings{PrintTokenAudience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign print token: %w", err)
	}
	return signed, nil
}

// Redeem validates the credential and marks it used; it returns the assignment it grants access to.
func (s *printTokenService) Redeem(ctx context.Context, token string) (uint, error) {
	if len(s.secret) == 0 {
		return 0, ErrPrintTokenInvalid
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(PrintTokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return 0, ErrPrintTokenInvalid
	}

	assignmentID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || assignmentID == 0 {
		return 0, ErrPrintTokenInvalid
	}

	if s.redis != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if ttl <= 0 {
			return 0, ErrPrintTokenInvalid
		}
		fresh, err := s.redis.SetNX(ctx, "print-token:"+claims.ID, assignmentID, ttl).Result()
		if err != nil {
			return 0, fmt.Errorf("record print token use: %w", err)
		}
		if !fresh {
			return 0, ErrPrintTokenUsed
		}
	}

	s.logger.Debug().Uint64("assignment_id", assignmentID).Str("jti", claims.ID).Msg("print token redeemed")
	return uint(assignmentID), nil
}
