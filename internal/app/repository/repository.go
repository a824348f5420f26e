package repository

import (
	"errors"

	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"gorm.io/gorm"
)

// logQueryError keeps expected misses out of the error log.
func logQueryError(msg string, err error, fields map[string]interface{}) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Debug(msg+": not found", fields)
		return
	}
	logger.Error(msg, err, fields)
}
