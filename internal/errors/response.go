package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The cart service answers {success, message, error?}; users and products
// answer {error} or {mensaje}. Both shapes are kept for existing clients.

// CartErrorResponse is the failure body of the cart service.
type CartErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the {error} body of the user and product services.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the {mensaje} body of the user and product services.
type MessageResponse struct {
	Message string `json:"mensaje"`
}

func CartFail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, CartErrorResponse{Success: false, Message: message})
}

// CartInternal exposes err's text in the error field.
func CartInternal(c *gin.Context, err error) {
	body := CartErrorResponse{Success: false, Message: "Error interno del servidor"}
	if err != nil {
		body.Error = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{Error: message})
}

func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, MessageResponse{Message: message})
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Token requerido"
	}
	RespondWithError(c, http.StatusUnauthorized, message)
}

func BadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, message)
}

// NotFound uses the {mensaje} shape, as the login and lookup endpoints do.
func NotFound(c *gin.Context, message string) {
	RespondWithMessage(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, err error) {
	RespondWithError(c, http.StatusInternalServerError, ParseError(err, "").Message)
}

// ParseAndRespond classifies err and writes the matching users/products body.
func ParseAndRespond(c *gin.Context, err error, resource string) {
	info := ParseError(err, resource)
	if info.Kind == KindNotFound {
		NotFound(c, info.Message)
		return
	}
	RespondWithError(c, info.Status, info.Message)
}
