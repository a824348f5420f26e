package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorInfo is the classification of an error plus what the client sees.
type ErrorInfo struct {
	Kind    Kind
	Status  int
	Message string
}

// ParseError classifies err. resource names the entity involved ("usuario",
// "producto") and only shapes the not-found and duplicate messages. Unknown
// errors keep their raw text, which is what clients of these services have
// always received.
func ParseError(err error, resource string) ErrorInfo {
	if err == nil {
		return ErrorInfo{Kind: KindInternal, Status: http.StatusInternalServerError, Message: "Error interno del servidor"}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{Kind: KindNotFound, Status: http.StatusNotFound, Message: notFoundMessage(resource)}
	}

	if IsDuplicateKey(err) {
		return ErrorInfo{Kind: KindDuplicate, Status: http.StatusConflict, Message: duplicateMessage(err, resource)}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrorInfo{Kind: KindDuplicate, Status: http.StatusConflict, Message: pgErr.Message}
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "database is closed") {
		return ErrorInfo{Kind: KindUnavailable, Status: http.StatusServiceUnavailable, Message: err.Error()}
	}

	return ErrorInfo{Kind: KindInternal, Status: http.StatusInternalServerError, Message: err.Error()}
}

// IsDuplicateKey reports a unique constraint violation on Postgres or SQLite.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func notFoundMessage(resource string) string {
	switch strings.ToLower(resource) {
	case "usuario":
		return "Usuario no encontrado"
	case "producto":
		return "Producto no encontrado"
	case "carrito":
		return "Carrito no encontrado"
	case "item":
		return "Item no encontrado en el carrito"
	default:
		return "Recurso no encontrado"
	}
}

func duplicateMessage(err error, resource string) string {
	detail := strings.ToLower(err.Error())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail = strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail)
	}

	if strings.Contains(detail, "email") {
		return "El email ya está registrado"
	}
	if resource != "" {
		return "El " + strings.ToLower(resource) + " ya existe"
	}
	return "Registro duplicado"
}
