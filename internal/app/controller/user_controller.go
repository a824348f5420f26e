package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	apperrors "github.com/tiendaweb/tienda-backend/internal/errors"
	"github.com/tiendaweb/tienda-backend/internal/middleware"
	"github.com/tiendaweb/tienda-backend/pkg/util"
)

type UserController struct {
	userService service.UserService
}

func NewUserController(userService service.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

type RegisterRequest struct {
	Name     string `json:"nombre" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type UpdateUserRequest struct {
	Name     string `json:"nombre" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"omitempty,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user
// POST /api/usuarios
func (ctrl *UserController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, "nombre, email y password (mínimo 6 caracteres) son requeridos")
		return
	}

	user, err := ctrl.userService.Register(req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			apperrors.RespondWithError(c, http.StatusConflict, "El email ya está registrado")
			return
		}
		log.Error("Failed to register user", err, map[string]interface{}{
			"email": req.Email,
		})
		apperrors.ParseAndRespond(c, err, "usuario")
		return
	}

	log.Info("User registered", map[string]interface{}{
		"user_id": user.ID,
	})
	apperrors.RespondWithMessage(c, http.StatusCreated, "Usuario creado")
}

// ListUsers returns every user without credentials
// GET /api/usuarios
func (ctrl *UserController) ListUsers(c *gin.Context) {
	users, err := ctrl.userService.ListUsers()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list users", err)
		apperrors.InternalError(c, err)
		return
	}

	public := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	c.JSON(http.StatusOK, public)
}

// UpdateUser changes name and email, and the password when one is given
// PUT /api/usuarios/:id
func (ctrl *UserController) UpdateUser(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseID(c)
	if !ok {
		apperrors.BadRequest(c, "ID de usuario inválido")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid user update request", map[string]interface{}{
			"user_id": id,
			"error":   err.Error(),
		})
		apperrors.BadRequest(c, "nombre y email son requeridos")
		return
	}

	_, err := ctrl.userService.UpdateUser(id, service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, "Usuario no encontrado")
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apperrors.RespondWithError(c, http.StatusConflict, "El email ya está registrado")
		default:
			log.Error("Failed to update user", err, map[string]interface{}{
				"user_id": id,
			})
			apperrors.ParseAndRespond(c, err, "usuario")
		}
		return
	}

	apperrors.RespondWithMessage(c, http.StatusOK, "Usuario actualizado")
}

// DeleteUser removes a user
// DELETE /api/usuarios/:id
func (ctrl *UserController) DeleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		apperrors.BadRequest(c, "ID de usuario inválido")
		return
	}

	if err := ctrl.userService.DeleteUser(id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, "Usuario no encontrado")
			return
		}
		middleware.GetLoggerFromContext(c).Error("Failed to delete user", err, map[string]interface{}{
			"user_id": id,
		})
		apperrors.ParseAndRespond(c, err, "usuario")
		return
	}

	apperrors.RespondWithMessage(c, http.StatusOK, "Usuario eliminado")
}

// Login issues a one-hour token
// POST /api/usuarios/login
func (ctrl *UserController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "email y password son requeridos")
		return
	}

	result, err := ctrl.userService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apperrors.NotFound(c, "Usuario no encontrado")
		case errors.Is(err, service.ErrWrongPassword):
			log.Warn("Login with wrong password", map[string]interface{}{
				"email": req.Email,
			})
			apperrors.RespondWithMessage(c, http.StatusUnauthorized, "Contraseña incorrecta")
		default:
			log.Error("Login failed", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.InternalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout revokes the caller's token until it expires
// POST /api/usuarios/logout
func (ctrl *UserController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	token, ok := middleware.GetToken(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.userService.Logout(c.Request.Context(), token); err != nil {
		switch {
		case errors.Is(err, service.ErrRevocationUnavailable):
			apperrors.RespondWithError(c, http.StatusServiceUnavailable, "Revocación de tokens no disponible")
		case errors.Is(err, util.ErrInvalidToken), errors.Is(err, util.ErrExpiredToken):
			apperrors.Unauthorized(c, "Token inválido")
		default:
			log.Error("Failed to revoke token", err)
			apperrors.InternalError(c, err)
		}
		return
	}

	apperrors.RespondWithMessage(c, http.StatusOK, "Sesión cerrada")
}

// GetProfile returns the authenticated user
// GET /api/usuarios/perfil
func (ctrl *UserController) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	user, err := ctrl.userService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, "Usuario no encontrado")
			return
		}
		apperrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}
