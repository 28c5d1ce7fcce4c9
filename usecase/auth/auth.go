package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
	"github.com/flowboard/backend/usecase"
)

// UseCase is the credential verifier plus the login/logout flow that
// backs it. Tokens are signed JWTs carrying a session id; the session
// lives in Redis so revocation takes effect before token expiry.
type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	recorder usecase.Recorder
	secret   []byte
	issuer   string
	ttl      time.Duration
	logger   *zap.Logger
}

type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

func New(users repository.UserRepository, sessions repository.SessionRepository, recorder usecase.Recorder, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = usecase.NopRecorder{}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		recorder: recorder,
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      cfg.TokenTTL,
		logger:   logger,
	}
}

type claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// LoginResult pairs the signed token with its session record.
type LoginResult struct {
	Token     string               `json:"token"`
	Session   *domain.LoginSession `json:"session"`
	Principal domain.Principal     `json:"principal"`
}

// Login mints a bearer token for an active directory user.
func (uc *UseCase) Login(ctx context.Context, userID, ip, userAgent string) (*LoginResult, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}

	now := time.Now()
	session := &domain.LoginSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.ttl),
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to persist session", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:    user.ID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    uc.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(uc.secret)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to sign token", err)
	}

	uc.recorder.Record(ctx, &domain.Activity{
		Action:     domain.ActionLogin,
		Actor:      user.ID,
		Category:   domain.CategorySecurity,
		Severity:   domain.SeverityLow,
		IP:         ip,
		UserAgent:  userAgent,
		IsResolved: true,
	})

	return &LoginResult{
		Token:   signed,
		Session: session,
		Principal: domain.Principal{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			Role:        user.Role,
		},
	}, nil
}

// Logout revokes the session behind the given token.
func (uc *UseCase) Logout(ctx context.Context, token string) error {
	c, err := uc.parse(token)
	if err != nil {
		return err
	}
	if err := uc.sessions.Delete(ctx, c.SessionID); err != nil {
		return err
	}

	uc.recorder.Record(ctx, &domain.Activity{
		Action:     domain.ActionLogout,
		Actor:      c.UserID,
		Category:   domain.CategorySecurity,
		Severity:   domain.SeverityLow,
		IsResolved: true,
	})
	return nil
}

// Verify resolves a bearer token to a principal. The session must
// still exist and the user must be active.
func (uc *UseCase) Verify(ctx context.Context, token string) (*domain.Principal, error) {
	c, err := uc.parse(token)
	if err != nil {
		return nil, err
	}

	session, err := uc.sessions.Get(ctx, c.SessionID)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, c.SessionID)
		return nil, domain.ErrUnauthorized
	}

	user, err := uc.users.GetByID(ctx, c.UserID)
	if err != nil || !user.IsActive {
		return nil, domain.ErrUnauthorized
	}

	return &domain.Principal{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}, nil
}

func (uc *UseCase) parse(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return uc.secret, nil
	})
	if err != nil || !parsed.Valid {
		uc.logger.Debug("token rejected", zap.Error(err))
		return nil, domain.ErrUnauthorized
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.UserID == "" || c.SessionID == "" {
		return nil, domain.ErrUnauthorized
	}
	return c, nil
}
