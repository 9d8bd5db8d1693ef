package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"
)

// UserHandler serves the authenticated caller's profile.
type UserHandler struct {
	svc         service.UserService
	authService service.AuthService
	log         logrus.FieldLogger
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, authService service.AuthService, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{svc: svc, authService: authService, log: log}
}

// UpdateProfileRequest carries the optional profile fields. Omitted fields
// are left unchanged.
type UpdateProfileRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	CurrentPassword *string `json:"currentPassword"`
}

// DeleteProfileRequest confirms account deletion.
type DeleteProfileRequest struct {
	Password string `json:"password" validate:"required"`
}

// GetProfile godoc
// @Summary Get the caller's profile with orders
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.svc.GetProfile(c.Request().Context(), middleware.IdentityFrom(c))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserResponse{
		Message: "user profile retrieved successfully",
		User:    user,
	})
}

// UpdateProfile godoc
// @Summary Update the caller's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}

	user, err := h.svc.UpdateProfile(c.Request().Context(), middleware.IdentityFrom(c), model.UserPatch{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserResponse{
		Message: "user profile updated successfully",
		User:    user,
	})
}

// DeleteProfile godoc
// @Summary Delete the caller's account
// @Description Requires the current password. The presented token is revoked.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteProfileRequest true "Password confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/profile [delete]
func (h *UserHandler) DeleteProfile(c echo.Context) error {
	var req DeleteProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}

	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}

	ctx := c.Request().Context()
	identity := middleware.IdentityFrom(c)
	if err := h.svc.DeleteProfile(ctx, identity, req.Password); err != nil {
		return fail(err)
	}
	if err := h.authService.Logout(ctx, middleware.ClaimsFrom(c)); err != nil {
		h.log.WithError(err).WithField("user_id", identity.ID).Warn("revoke token of deleted user")
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "user deleted successfully"})
}
