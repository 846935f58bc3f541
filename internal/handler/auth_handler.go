package handler

import (
	"errors"
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/middleware"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, userService *service.UserService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Validates username + password, returns JWT.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		fail(c, h.log, err)
		return
	}

	if err := h.authService.CheckPassword(user.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateStudentToken(user)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("Student logged in")
	response.Success(c, http.StatusOK, model.LoginResponse{Token: token, User: *user})
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Validates the admin PIN, returns JWT.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.CheckAdminPIN(req.PIN); err != nil {
		h.log.Warn().Str("ip", c.ClientIP()).Msg("Rejected admin PIN")
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidPIN)
		return
	}

	token, err := h.authService.GenerateAdminToken()
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, model.LoginResponse{Token: token, User: adminUser})
}

var adminUser = model.User{
	ID:       model.AdminID,
	Username: model.AdminID,
	Name:     model.AdminName,
	Role:     model.RoleAdmin,
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the caller.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if claims.TokenType == service.TokenTypeAdmin {
		response.Success(c, http.StatusOK, gin.H{"user": adminUser})
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}
