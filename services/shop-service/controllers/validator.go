package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yashrajoria/shopnow-backend/services/common/auth"
	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
)

// RequestValidator handles all input validation
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// BindJSON decodes the body into dst and validates it.
func (rv *RequestValidator) BindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.Validation("Invalid request body", err)
	}
	return rv.Struct(dst)
}

// Struct validates dst and turns the first failure into a readable message.
func (rv *RequestValidator) Struct(dst any) error {
	err := rv.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.Validation(fieldMessage(verrs[0]), err)
	}
	return apperrors.Validation("Invalid input data", err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "eqfield":
		return "Passwords are not the same!"
	case "min", "gte", "gt":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "mongodb":
		return fmt.Sprintf("%s must be a valid id", field)
	case "numeric":
		return fmt.Sprintf("%s must contain digits only", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ObjectIDParam parses a path parameter as an ObjectID.
func ObjectIDParam(c *gin.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation(fmt.Sprintf("Invalid %s: %s", name, c.Param(name)), err)
	}
	return id, nil
}

// CurrentUserID is the id of the principal set by Protect.
func CurrentUserID(c *gin.Context) (primitive.ObjectID, error) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		return primitive.NilObjectID, apperrors.Unauthorized("You are not logged in! Please log in to get access")
	}
	id, err := primitive.ObjectIDFromHex(principal.UserID)
	if err != nil {
		return primitive.NilObjectID, apperrors.Unauthorized("Invalid token. Please log in again")
	}
	return id, nil
}
