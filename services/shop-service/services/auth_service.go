package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yashrajoria/shopnow-backend/services/common/auth"
	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

const (
	resetTokenBytes  = 32
	resetTokenExpiry = 10 * time.Minute
)

type SignupRequest struct {
	FirstName       string     `json:"firstName" validate:"required,max=50"`
	LastName        string     `json:"lastName" validate:"required,max=50"`
	Email           string     `json:"email" validate:"required,email"`
	Phone           string     `json:"phone" validate:"required,numeric,min=10"`
	DateOfBirth     *time.Time `json:"dateOfBirth"`
	Password        string     `json:"password" validate:"required,min=8"`
	PasswordConfirm string     `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Session is a signed-in user and the token that proves it.
type Session struct {
	Token string
	User  *models.User
}

// AuthService handles accounts, credentials and password resets.
type AuthService struct {
	users     repository.UserRepository
	tokens    *TokenService
	hasher    PasswordHasher
	mailer    Mailer
	publisher EventPublisher
	log       *zap.Logger
	clock     func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *TokenService, hasher PasswordHasher, mailer Mailer, publisher EventPublisher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.L()
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    mailer,
		publisher: publisher,
		log:       log,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &models.User{
		ID:          primitive.NewObjectID(),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       strings.TrimSpace(req.Phone),
		Photo:       models.DefaultUserPhoto,
		DateOfBirth: req.DateOfBirth,
		Password:    hashed,
		Role:        models.RoleUser,
		Active:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperrors.Conflict("Email or phone number is already in use", err)
		}
		return nil, storeError(err, "")
	}

	s.log.Info("User signed up", zap.String("user_id", user.ID.Hex()))
	return s.session(user)
}

// Signin checks credentials. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Signin(ctx context.Context, req SigninRequest) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err, "")
	}
	if user == nil || !s.hasher.Compare(user.Password, req.Password) {
		return nil, apperrors.Forbidden("Incorrect email or password")
	}
	return s.session(user)
}

// ForgotPassword mails a single-use reset link valid for ten minutes. resetURL is the
// link prefix the raw token is appended to.
func (s *AuthService) ForgotPassword(ctx context.Context, email, resetURL string) error {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return storeError(err, "There is no user with that email address")
	}

	token, hashed, err := newResetToken()
	if err != nil {
		return apperrors.Internal("Failed to create reset token", err)
	}
	expires := s.clock().Add(resetTokenExpiry)
	if _, err := s.users.Update(ctx, user.ID, bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": expires,
	}); err != nil {
		return storeError(err, "There is no user with that email address")
	}

	link := resetURL + token
	body := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n\nIf you didn't forget your password, please ignore this email.", link)
	if err := s.mailer.Send(ctx, user.Email, "Your password reset token (valid for 10 min)", body); err != nil {
		if _, clearErr := s.users.Update(ctx, user.ID, nil, "passwordResetToken", "passwordResetExpires"); clearErr != nil {
			s.log.Error("Failed to clear reset token", zap.String("user_id", user.ID.Hex()), zap.Error(clearErr))
		}
		return apperrors.Internal("There was an error sending the email. Try again later!", err)
	}

	if err := s.publisher.Publish(ctx, EventPasswordResetRequested, user.ID.Hex(), map[string]any{
		"user_id":    user.ID.Hex(),
		"email":      user.Email,
		"expires_at": expires,
	}); err != nil {
		s.log.Warn("Failed to publish password reset event", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error) {
	user, err := s.users.FindByResetToken(ctx, hashResetToken(token), s.clock())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Validation("Token is invalid or has expired", nil)
	}
	if err != nil {
		return nil, storeError(err, "")
	}

	updated, err := s.setPassword(ctx, user.ID, req.Password, "passwordResetToken", "passwordResetExpires")
	if err != nil {
		return nil, err
	}
	return s.session(updated)
}

func (s *AuthService) UpdateMyPassword(ctx context.Context, userID primitive.ObjectID, req UpdatePasswordRequest) (*Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "No user found with that ID")
	}
	if !s.hasher.Compare(user.Password, req.PasswordCurrent) {
		return nil, apperrors.Unauthorized("Your current password is wrong")
	}

	updated, err := s.setPassword(ctx, user.ID, req.Password)
	if err != nil {
		return nil, err
	}
	return s.session(updated)
}

// Authenticate resolves a bearer token to its user. Tokens issued before the last
// password change are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (auth.Principal, *models.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return auth.Principal{}, nil, apperrors.Unauthorized("Invalid token. Please log in again")
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return auth.Principal{}, nil, apperrors.Unauthorized("Invalid token. Please log in again")
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return auth.Principal{}, nil, apperrors.Unauthorized("The user belonging to this token no longer exists")
	}
	if err != nil {
		return auth.Principal{}, nil, storeError(err, "")
	}
	if user.PasswordChangedAfter(claims.IssuedAt) {
		return auth.Principal{}, nil, apperrors.Unauthorized("User recently changed password. Please log in again")
	}

	return auth.Principal{UserID: user.ID.Hex(), Role: user.Role}, user, nil
}

// TokenTTL is the lifetime of issued session tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) setPassword(ctx context.Context, id primitive.ObjectID, password string, unset ...string) (*models.User, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}
	// one second back so a token signed right after this still validates
	changedAt := s.clock().Add(-time.Second)

	user, err := s.users.Update(ctx, id, bson.M{
		"password":          hashed,
		"passwordChangedAt": changedAt,
	}, unset...)
	if err != nil {
		return nil, storeError(err, "No user found with that ID")
	}
	return user, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		return nil, apperrors.Internal("Failed to sign token", err)
	}
	return &Session{Token: token, User: user}, nil
}

func newResetToken() (token, hashed string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
