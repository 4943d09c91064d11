package services

import (
	"errors"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

// storeError maps a repository failure onto an operational error.
func storeError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(notFoundMsg)
	case repository.IsDuplicate(err):
		return apperrors.Conflict("Duplicate field value. Please use another value", err)
	default:
		return apperrors.Upstream("Database request failed", err)
	}
}
