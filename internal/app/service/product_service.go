package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrInvalidStockOperation = errors.New("invalid stock operation")
	ErrStockChangeInProgress = errors.New("stock change with this key is in progress")
)

// IdempotencyStore claims request keys so a replay is applied at most once.
// A key only counts as completed after Complete; an unfinished claim is in
// progress and must not be replayed as a success.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (claimed bool, completed bool, err error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       *string
}

type ProductService interface {
	ListProducts(filter repository.ProductFilter) ([]model.Product, error)
	GetProduct(id uint) (*model.Product, error)
	CreateProduct(input ProductInput) (*model.Product, error)
	UpdateProduct(id uint, input ProductInput) (*model.Product, error)
	DeleteProduct(id uint) error
	// AdjustStock applies a stock change. replayed is true when key was
	// already used and the change was not applied again.
	AdjustStock(ctx context.Context, id uint, quantity int, op model.StockOperation, key string) (product *model.Product, replayed bool, err error)
}

type productService struct {
	productRepo repository.ProductRepository
	idempotency IdempotencyStore
}

// NewProductService builds the product directory service. idempotency may be
// nil, in which case Idempotency-Key headers are ignored.
func NewProductService(productRepo repository.ProductRepository, idempotency IdempotencyStore) ProductService {
	return &productService{
		productRepo: productRepo,
		idempotency: idempotency,
	}
}

func (s *productService) ListProducts(filter repository.ProductFilter) ([]model.Product, error) {
	products, err := s.productRepo.FindAll(filter)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *productService) GetProduct(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(input ProductInput) (*model.Product, error) {
	logger.Info("Creating product", map[string]interface{}{
		"name":  input.Name,
		"price": input.Price.String(),
		"stock": input.Stock,
	})

	product := &model.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		Image:       input.Image,
	}
	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}

	logger.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
	})
	return product, nil
}

func (s *productService) UpdateProduct(id uint, input ProductInput) (*model.Product, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Stock = input.Stock
	if input.Image != nil {
		product.Image = input.Image
	}

	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}

	logger.Info("Product updated", map[string]interface{}{
		"product_id": id,
	})
	return product, nil
}

func (s *productService) DeleteProduct(id uint) error {
	if err := s.productRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	logger.Info("Product deleted", map[string]interface{}{
		"product_id": id,
	})
	return nil
}

func (s *productService) AdjustStock(ctx context.Context, id uint, quantity int, op model.StockOperation, key string) (*model.Product, bool, error) {
	if quantity <= 0 {
		return nil, false, ErrInvalidQuantity
	}
	if !op.Valid() {
		return nil, false, ErrInvalidStockOperation
	}

	if key == "" || s.idempotency == nil {
		product, err := s.applyStockChange(id, quantity, op)
		return product, false, err
	}

	claimed, completed, err := s.idempotency.Claim(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		if !completed {
			return nil, false, ErrStockChangeInProgress
		}
		logger.Info("Stock change replayed, skipping", map[string]interface{}{
			"product_id":      id,
			"idempotency_key": key,
		})
		product, err := s.GetProduct(id)
		return product, true, err
	}

	product, err := s.applyStockChange(id, quantity, op)
	if err != nil {
		// Let the caller retry with the same key.
		if relErr := s.idempotency.Release(ctx, key); relErr != nil {
			logger.Warn("Idempotency key left claimed until its lease expires", map[string]interface{}{
				"product_id":      id,
				"idempotency_key": key,
				"error":           relErr.Error(),
			})
		}
		return nil, false, err
	}
	if err := s.idempotency.Complete(ctx, key); err != nil {
		logger.Error("Stock change applied but key not marked done", err, map[string]interface{}{
			"product_id":      id,
			"idempotency_key": key,
		})
	}
	return product, false, nil
}

func (s *productService) applyStockChange(id uint, quantity int, op model.StockOperation) (*model.Product, error) {
	delta := quantity
	if op == model.StockSubtract {
		delta = -quantity
	}

	applied, err := s.productRepo.AdjustStock(id, delta)
	if err != nil {
		return nil, err
	}

	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}
	if !applied {
		logger.Warn("Stock change rejected", map[string]interface{}{
			"product_id": id,
			"requested":  quantity,
			"available":  product.Stock,
		})
		return nil, ErrInsufficientStock
	}

	logger.Info("Stock updated", map[string]interface{}{
		"product_id": id,
		"operation":  string(op),
		"quantity":   quantity,
		"stock":      product.Stock,
	})
	return product, nil
}
