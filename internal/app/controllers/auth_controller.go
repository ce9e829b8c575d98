// Package controllers handles HTTP request handling
package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/app/models/dto"
	"github.com/brightstar/portal/internal/app/services"
	"github.com/brightstar/portal/internal/middleware"
)

type authenticator interface {
	LoginAdmin(ctx context.Context, username, password string) (*services.LoginResult, error)
	LoginStudent(ctx context.Context, studentID, password string) (*services.LoginResult, error)
}

// AuthController handles authentication related operations
type AuthController struct {
	authService authenticator
	logger      zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(authService authenticator, logger zerolog.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger.With().Str("component", "auth_controller").Logger(),
	}
}

func authResponse(res *services.LoginResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token: dto.TokenResponse{
			AccessToken: res.AccessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int64(res.ExpiresIn),
		},
		User: res.Account,
	}
}

// AdminLogin handles administrator login
// @Summary Admin login
// @Description Authenticates an administrator and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse}
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account disabled"
// @Router /auth/admin/login [post]
func (c *AuthController) AdminLogin(ctx *gin.Context) {
	var req dto.AdminLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid admin login payload")
		middleware.HandleBindingError(ctx, err, "Invalid login data")
		return
	}

	res, err := c.authService.LoginAdmin(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(authResponse(res), "Login successful"))
}

// StudentLogin handles student login with the student identifier
// @Summary Student login
// @Description Authenticates an active student by identifier and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.StudentLoginRequest true "Student credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse}
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account inactive"
// @Router /auth/student/login [post]
func (c *AuthController) StudentLogin(ctx *gin.Context) {
	var req dto.StudentLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid student login payload")
		middleware.HandleBindingError(ctx, err, "Invalid login data")
		return
	}

	res, err := c.authService.LoginStudent(ctx.Request.Context(), req.StudentID, req.Password)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(authResponse(res), "Login successful"))
}
