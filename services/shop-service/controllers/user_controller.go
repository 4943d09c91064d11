package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/common/logger"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/middleware"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

const loggedOutCookieTTL = 10 * time.Second

type UserController struct {
	auth         *services.AuthService
	users        *services.UserService
	validator    *RequestValidator
	cookieMaxAge time.Duration
}

func NewUserController(authService *services.AuthService, users *services.UserService, validator *RequestValidator, cookieMaxAge time.Duration) *UserController {
	return &UserController{auth: authService, users: users, validator: validator, cookieMaxAge: cookieMaxAge}
}

func (uc *UserController) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	sess, err := uc.auth.Signup(c.Request.Context(), req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	logger.Info(c, "User signed up", zap.String("user_id", sess.User.ID.Hex()))
	uc.sendSession(c, http.StatusCreated, sess)
}

func (uc *UserController) Signin(c *gin.Context) {
	var req services.SigninRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	sess, err := uc.auth.Signin(c.Request.Context(), req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	uc.sendSession(c, http.StatusOK, sess)
}

// Signout overwrites the session cookie with a short-lived placeholder.
func (uc *UserController) Signout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "loggedout", int(loggedOutCookieTTL.Seconds()), "/", "", isSecure(c), true)
	c.JSON(http.StatusOK, gin.H{"status": apperrors.StatusSuccess})
}

func (uc *UserController) ForgotPassword(c *gin.Context) {
	var req services.ForgotPasswordRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	resetURL := fmt.Sprintf("%s://%s/api/v1/users/reset-password/", scheme(c), c.Request.Host)
	if err := uc.auth.ForgotPassword(c.Request.Context(), req.Email, resetURL); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": apperrors.StatusSuccess, "message": "Token sent to email!"})
}

func (uc *UserController) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	sess, err := uc.auth.ResetPassword(c.Request.Context(), c.Param("resetToken"), req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	uc.sendSession(c, http.StatusOK, sess)
}

func (uc *UserController) UpdateMyPassword(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.UpdatePasswordRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	sess, err := uc.auth.UpdateMyPassword(c.Request.Context(), user, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	uc.sendSession(c, http.StatusOK, sess)
}

func (uc *UserController) GetMe(c *gin.Context) {
	id, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	user, err := uc.users.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": user})
}

func (uc *UserController) UpdateMe(c *gin.Context) {
	id, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.UpdateMeRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	user, err := uc.users.UpdateMe(c.Request.Context(), id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"user": user})
}

func (uc *UserController) DeleteMe(c *gin.Context) {
	id, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.DeleteMeRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	if err := uc.users.DeleteMe(c.Request.Context(), id, req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, nil)
}

func (uc *UserController) List(c *gin.Context) {
	spec, err := query.Parse(c.Request.URL.Query())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	users, err := uc.users.List(c.Request.Context(), spec)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, len(users), gin.H{"doc": users})
}

// Create exists so POST /users answers with a pointer to /signup.
func (uc *UserController) Create(c *gin.Context) {
	apperrors.Abort(c, apperrors.Internal("This route is not defined! Please use /signup instead", nil))
}

func (uc *UserController) Get(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	user, err := uc.users.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": user})
}

func (uc *UserController) Update(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.AdminUpdateUserRequest
	if err := uc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	user, err := uc.users.Update(c.Request.Context(), id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": user})
}

func (uc *UserController) Delete(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	if err := uc.users.Delete(c.Request.Context(), id); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// sendSession sets the session cookie and returns the token alongside the user.
func (uc *UserController) sendSession(c *gin.Context, code int, sess *services.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, sess.Token, int(uc.cookieMaxAge.Seconds()), "/", "", isSecure(c), true)
	c.JSON(code, gin.H{
		"status": apperrors.StatusSuccess,
		"token":  sess.Token,
		"data":   gin.H{"user": sess.User},
	})
}

func isSecure(c *gin.Context) bool {
	return c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}

func scheme(c *gin.Context) string {
	if isSecure(c) {
		return "https"
	}
	return "http"
}
