package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/models"
	"github.com/contactly/contactly/pkg/crypto"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/logger"
	"github.com/contactly/contactly/pkg/mail"
	"github.com/contactly/contactly/pkg/metrics"
)

// RegisterRequest carries the fields accepted when creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest carries the credentials presented at login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the successful login payload.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserService owns the account lifecycle: registration, email verification,
// login, avatar updates, and deletion.
type UserService struct {
	db      *gorm.DB
	tokens  *iauth.TokenService
	mailer  mail.Mailer
	baseURL string
	log     *zap.Logger
}

// NewUserService builds a UserService. The mailer may be nil, in which case
// verification links are only written to the log.
func NewUserService(db *gorm.DB, tokens *iauth.TokenService, mailer mail.Mailer, baseURL string) *UserService {
	return &UserService{
		db:      db,
		tokens:  tokens,
		mailer:  mailer,
		baseURL: baseURL,
		log:     logger.WithModule("services.user"),
	}
}

// Register creates an unverified account and dispatches a verification link.
// A duplicate email is reported as a conflict without touching the existing
// account.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	digest, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		Email:    req.Email,
		Password: digest,
		Verified: false,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			metrics.AuthAttempts.WithLabelValues("register_conflict").Inc()
			return nil, appErrors.NewConflict("an account with this email already exists")
		}
		return nil, appErrors.Wrap(err, "failed to create user")
	}

	metrics.AuthAttempts.WithLabelValues("register_success").Inc()
	s.sendVerificationLink(ctx, user)

	return user, nil
}

// ResendVerification issues a fresh verification link for an existing account.
// Already-verified accounts are left untouched.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Verified {
		return nil
	}

	s.sendVerificationLink(ctx, user)
	return nil
}

func (s *UserService) sendVerificationLink(ctx context.Context, user *models.User) {
	token, err := s.tokens.IssueVerifyToken(user.ID)
	if err != nil {
		s.log.Error("failed to issue verification token",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return
	}

	link := fmt.Sprintf("%s/api/auth/verify?token=%s", s.baseURL, token)

	if s.mailer != nil {
		msg := mail.Message{
			To:      []string{user.Email},
			Subject: "Verify your email address",
			Body:    "Welcome! Confirm your address by opening the link below.\r\n\r\n" + link + "\r\n",
		}
		if err := s.mailer.Send(ctx, msg); err == nil {
			metrics.EmailVerifications.WithLabelValues("sent").Inc()
			return
		} else if !errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("failed to send verification email",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}

	// Delivery is best-effort; the link in the log keeps local setups usable.
	s.log.Info("verification link issued",
		zap.String("user_id", user.ID),
		zap.String("link", link))
}

// VerifyEmail consumes a verification token and flips the account to
// verified. Re-presenting a token for an already-verified account succeeds
// without changing anything.
func (s *UserService) VerifyEmail(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.tokens.Verify(tokenString, iauth.TokenKindVerify)
	if err != nil {
		metrics.EmailVerifications.WithLabelValues("invalid_token").Inc()
		return nil, appErrors.NewBadRequest("invalid or expired verification token")
	}

	user, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		metrics.EmailVerifications.WithLabelValues("unknown_user").Inc()
		return nil, appErrors.NewBadRequest("invalid or expired verification token")
	}

	if user.Verified {
		metrics.EmailVerifications.WithLabelValues("already_verified").Inc()
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Update("verified", true).Error; err != nil {
		return nil, appErrors.Wrap(err, "failed to mark email verified")
	}
	user.Verified = true

	metrics.EmailVerifications.WithLabelValues("verified").Inc()
	s.log.Info("email verified", zap.String("user_id", user.ID))

	return user, nil
}

// Authenticate checks credentials and issues an access token. A wrong email
// and a wrong password produce the same error; an unverified account is
// reported separately once the password matched.
func (s *UserService) Authenticate(ctx context.Context, req LoginRequest) (*TokenPair, *models.User, error) {
	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login_failed").Inc()
		return nil, nil, appErrors.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.Password, req.Password) {
		metrics.AuthAttempts.WithLabelValues("login_failed").Inc()
		return nil, nil, appErrors.ErrInvalidCredentials
	}

	if !user.Verified {
		metrics.AuthAttempts.WithLabelValues("login_unverified").Inc()
		return nil, nil, appErrors.ErrEmailUnverified
	}

	token, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, "failed to issue access token")
	}

	metrics.AuthAttempts.WithLabelValues("login_success").Inc()

	return &TokenPair{AccessToken: token, TokenType: "bearer"}, user, nil
}

// GetByID loads a user by primary key.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}

// UpdateAvatar records the uploaded avatar location on the account.
func (s *UserService) UpdateAvatar(ctx context.Context, userID, url, publicID string) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"avatar_url":       url,
		"avatar_public_id": publicID,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, appErrors.Wrap(err, "failed to update avatar")
	}

	user.AvatarURL = url
	user.AvatarPublicID = publicID
	return user, nil
}

// Delete removes the account together with every contact it owns.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", userID).Delete(&models.Contact{}).Error; err != nil {
			return appErrors.Wrap(err, "failed to delete contacts")
		}

		res := tx.Delete(&models.User{}, "id = ?", userID)
		if res.Error != nil {
			return appErrors.Wrap(res.Error, "failed to delete user")
		}
		if res.RowsAffected == 0 {
			return appErrors.ErrNotFound
		}
		return nil
	})
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}
