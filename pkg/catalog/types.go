package catalog

import "github.com/shopspring/decimal"

// Product is the directory's view of a product.
type Product struct {
	ID          uint            `json:"id"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	Image       *string         `json:"imagen"`
}

// StockRequest is the body of PUT /api/productos/:id/stock.
type StockRequest struct {
	Quantity  int    `json:"cantidad"`
	Operation string `json:"operacion"`
}

// envelope covers both the {data: ...} and the bare product response shapes.
type envelope struct {
	Data *Product `json:"data"`
}

// ErrorResponse is the directory's error body. Either field may be set.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"mensaje"`
}

func (e ErrorResponse) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
