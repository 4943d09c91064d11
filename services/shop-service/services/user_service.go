package services

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

// UpdateMeRequest carries the profile fields a user may change. The password fields are
// decoded only to reject them.
type UpdateMeRequest struct {
	FirstName       *string    `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName        *string    `json:"lastName" validate:"omitempty,min=1,max=50"`
	Email           *string    `json:"email" validate:"omitempty,email"`
	Phone           *string    `json:"phone" validate:"omitempty,numeric,min=10"`
	Photo           *string    `json:"photo"`
	DateOfBirth     *time.Time `json:"dateOfBirth"`
	Password        *string    `json:"password"`
	PasswordConfirm *string    `json:"passwordConfirm"`
}

type DeleteMeRequest struct {
	Password string `json:"password" validate:"required"`
}

// AdminUpdateUserRequest is UpdateMeRequest plus the role.
type AdminUpdateUserRequest struct {
	UpdateMeRequest
	Role *string `json:"role"`
}

type UserService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	log    *zap.Logger
}

func NewUserService(users repository.UserRepository, hasher PasswordHasher, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.L()
	}
	return &UserService{users: users, hasher: hasher, log: log}
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "No user found with that ID")
	}
	return user, nil
}

// UpdateMe changes the caller's profile. Role, activity and password are not reachable here.
func (s *UserService) UpdateMe(ctx context.Context, id primitive.ObjectID, req UpdateMeRequest) (*models.User, error) {
	if req.Password != nil || req.PasswordConfirm != nil {
		return nil, apperrors.Validation("This route is not for password updates. Please use /update-my-password", nil)
	}
	return s.update(ctx, id, profileFields(req))
}

// DeleteMe deactivates the caller after checking their password.
func (s *UserService) DeleteMe(ctx context.Context, id primitive.ObjectID, req DeleteMeRequest) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return storeError(err, "No user found with that ID")
	}
	if !s.hasher.Compare(user.Password, req.Password) {
		return apperrors.Unauthorized("Your password is wrong")
	}
	if _, err := s.users.Update(ctx, id, bson.M{"active": false}); err != nil {
		return storeError(err, "No user found with that ID")
	}
	s.log.Info("User deactivated", zap.String("user_id", id.Hex()))
	return nil
}

func (s *UserService) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	users, err := s.users.List(ctx, spec)
	if err != nil {
		return nil, storeError(err, "")
	}
	return users, nil
}

// Update is the administrative profile edit. Passwords still go through their own routes.
func (s *UserService) Update(ctx context.Context, id primitive.ObjectID, req AdminUpdateUserRequest) (*models.User, error) {
	if req.Password != nil || req.PasswordConfirm != nil {
		return nil, apperrors.Validation("Passwords cannot be changed through this route", nil)
	}
	set := profileFields(req.UpdateMeRequest)
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			return nil, apperrors.Validation("Role must be one of user, admin or seller", nil)
		}
		set["role"] = *req.Role
	}
	return s.update(ctx, id, set)
}

func (s *UserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.users.Delete(ctx, id); err != nil {
		return storeError(err, "No user found with that ID")
	}
	return nil
}

func (s *UserService) update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	if len(set) == 0 {
		return nil, apperrors.Validation("No updatable fields provided", nil)
	}
	user, err := s.users.Update(ctx, id, set)
	if repository.IsDuplicate(err) {
		return nil, apperrors.Conflict("Email or phone number is already in use", err)
	}
	if err != nil {
		return nil, storeError(err, "No user found with that ID")
	}
	return user, nil
}

func profileFields(req UpdateMeRequest) bson.M {
	set := bson.M{}
	if req.FirstName != nil {
		set["firstName"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		set["lastName"] = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		set["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		set["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Photo != nil {
		set["photo"] = *req.Photo
	}
	if req.DateOfBirth != nil {
		set["dateOfBirth"] = req.DateOfBirth.UTC()
	}
	return set
}
