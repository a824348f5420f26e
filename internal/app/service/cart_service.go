package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	apperrors "github.com/tiendaweb/tienda-backend/internal/errors"
	"github.com/tiendaweb/tienda-backend/pkg/catalog"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrMissingIDs          = errors.New("user id and product id are required")
	ErrCartNotFound        = errors.New("cart not found")
	ErrCartEmpty           = errors.New("cart is empty")
	ErrCartItemNotFound    = errors.New("cart item not found")
	ErrCatalogUnavailable  = errors.New("product directory unavailable")
	ErrMergedStockExceeded = fmt.Errorf("%w for merged quantity", ErrInsufficientStock)
)

// enrichConcurrency bounds parallel product lookups for one cart view.
const enrichConcurrency = 8

// UnavailableProductName replaces the name of items whose product lookup failed.
const UnavailableProductName = "Producto no disponible"

// StockError reports a line whose requested quantity exceeds the known stock.
// It unwraps to ErrInsufficientStock.
type StockError struct {
	ProductID   uint
	ProductName *string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// Label names the product for client messages, falling back to its id.
func (e *StockError) Label() string {
	if e.ProductName != nil && *e.ProductName != "" {
		return *e.ProductName
	}
	return fmt.Sprintf("producto ID: %d", e.ProductID)
}

// ProductCatalog is the part of the product directory client the cart needs.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id uint) (*catalog.Product, error)
	LookupProduct(ctx context.Context, id uint) (*catalog.Product, error)
}

// CartLine is a cart item enriched with live product data.
type CartLine struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"producto_id"`
	Quantity    int             `json:"cantidad"`
	Price       decimal.Decimal `json:"precio"`
	AddedAt     time.Time       `json:"fecha_agregado"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Image       *string         `json:"imagen"`
	Stock       int             `json:"stock"`
}

type CartView struct {
	Cart          *model.Cart
	Lines         []CartLine
	Total         decimal.Decimal
	TotalQuantity int
}

type CheckoutRequest struct {
	ShippingAddress string
	ContactPhone    string
}

type CheckoutResult struct {
	Total     decimal.Decimal
	Items     int
	CartID    uint
	Reference string
}

type CartService interface {
	GetCart(ctx context.Context, userID uint) (*CartView, error)
	AddItem(ctx context.Context, userID, productID uint, quantity int) (*model.CartItem, error)
	UpdateItem(ctx context.Context, itemID uint, quantity int) (*model.CartItem, error)
	RemoveItem(itemID uint) (*model.CartItem, error)
	ClearCart(userID uint) error
	Checkout(ctx context.Context, userID uint, req CheckoutRequest) (*CheckoutResult, error)
	Stats(userID uint) (*model.CartStats, error)
}

type cartService struct {
	db         *gorm.DB
	cartRepo   repository.CartRepository
	outboxRepo repository.OutboxRepository
	catalog    ProductCatalog
	dispatcher *StockDispatcher
	newRef     func() string
}

// NewCartService builds the cart service. dispatcher may be nil, leaving
// stock decrements to the relay. newRef generates checkout reference codes.
func NewCartService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	outboxRepo repository.OutboxRepository,
	productCatalog ProductCatalog,
	dispatcher *StockDispatcher,
	newRef func() string,
) CartService {
	return &cartService{
		db:         db,
		cartRepo:   cartRepo,
		outboxRepo: outboxRepo,
		catalog:    productCatalog,
		dispatcher: dispatcher,
		newRef:     newRef,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	logger.Debug("Fetching cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.cartRepo.FindOrCreateActive(userID)
	if err != nil {
		return nil, err
	}

	items, err := s.cartRepo.FindItems(cart.ID)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			lines[i] = s.enrich(gctx, items[i])
			return nil
		})
	}
	_ = g.Wait()

	view := &CartView{Cart: cart, Lines: lines, Total: decimal.Zero}
	for _, item := range items {
		view.Total = view.Total.Add(item.Subtotal())
		view.TotalQuantity += item.Quantity
	}
	return view, nil
}

// enrich attaches live product data. Lookup failures degrade to a placeholder.
func (s *cartService) enrich(ctx context.Context, item model.CartItem) CartLine {
	line := CartLine{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.UnitPrice,
		AddedAt:   item.AddedAt,
	}

	product, err := s.catalog.LookupProduct(ctx, item.ProductID)
	if err != nil {
		logger.Warn("Product lookup failed, using placeholder", map[string]interface{}{
			"product_id": item.ProductID,
			"error":      err.Error(),
		})
		line.Name = UnavailableProductName
		return line
	}

	line.Name = product.Name
	line.Description = product.Description
	line.Image = product.Image
	line.Stock = product.Stock
	return line
}

// fetchProduct reads the live product and translates directory errors.
func (s *cartService) fetchProduct(ctx context.Context, productID uint) (*catalog.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err == nil {
		return product, nil
	}
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}

	logger.Error("Product directory lookup failed", err, map[string]interface{}{
		"product_id": productID,
	})
	return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func (s *cartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Adding product to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	if userID == 0 || productID == 0 {
		return nil, ErrMissingIDs
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.fetchProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.ID = productID
	if product.Stock < quantity {
		return nil, &StockError{ProductID: productID, ProductName: &product.Name, Requested: quantity, Available: product.Stock}
	}

	item, err := s.addItemTx(ctx, userID, product, quantity)
	if err != nil && apperrors.IsDuplicateKey(err) {
		// A concurrent request inserted the same cart or line first; the
		// retry finds that row and merges into it.
		logger.Debug("Concurrent cart write, retrying", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		item, err = s.addItemTx(ctx, userID, product, quantity)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Product added to cart", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})
	return item, nil
}

func (s *cartService) addItemTx(ctx context.Context, userID uint, product *catalog.Product, quantity int) (*model.CartItem, error) {
	var result *model.CartItem

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts := s.cartRepo.WithTx(tx)

		cart, err := carts.FindOrCreateActive(userID)
		if err != nil {
			return err
		}

		existing, err := carts.FindItemForUpdate(cart.ID, product.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if existing != nil {
			merged := existing.Quantity + quantity
			if product.Stock < merged {
				return ErrMergedStockExceeded
			}
			existing.Quantity = merged
			existing.AddedAt = time.Now()
			if err := carts.UpdateItem(existing); err != nil {
				return err
			}
			result = existing
			return nil
		}

		item := &model.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}
		if err := carts.CreateItem(item); err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *cartService) UpdateItem(ctx context.Context, itemID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Updating cart item quantity", map[string]interface{}{
		"cart_item_id": itemID,
		"quantity":     quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.cartRepo.FindItemByID(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}

	product, err := s.fetchProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, &StockError{ProductID: item.ProductID, ProductName: &product.Name, Requested: quantity, Available: product.Stock}
	}

	item.Quantity = quantity
	item.AddedAt = time.Now()
	if err := s.cartRepo.UpdateItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) RemoveItem(itemID uint) (*model.CartItem, error) {
	item, err := s.cartRepo.DeleteItem(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}

	logger.Info("Cart item removed", map[string]interface{}{
		"cart_item_id": itemID,
		"cart_id":      item.CartID,
	})
	return item, nil
}

// ClearCart empties the active cart. The cart itself stays active.
func (s *cartService) ClearCart(userID uint) error {
	cart, err := s.cartRepo.FindActive(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		}
		return err
	}

	removed, err := s.cartRepo.DeleteItemsByCart(cart.ID)
	if err != nil {
		return err
	}

	logger.Info("Cart cleared", map[string]interface{}{
		"user_id": userID,
		"cart_id": cart.ID,
		"removed": removed,
	})
	return nil
}

// Checkout closes the user's active cart in one transaction. Stock decrements
// are recorded in the outbox inside that transaction and pushed to the
// product directory after commit; delivery failures never fail the checkout.
func (s *cartService) Checkout(ctx context.Context, userID uint, req CheckoutRequest) (*CheckoutResult, error) {
	logger.Info("Starting checkout", map[string]interface{}{
		"user_id": userID,
	})

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during checkout, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": userID,
			})
			panic(r)
		}
	}()

	result, events, err := s.checkoutTx(tx, userID, req)
	if err != nil {
		tx.Rollback()
		logger.Warn("Checkout failed, rolled back", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit checkout", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("Checkout committed", map[string]interface{}{
		"user_id":   userID,
		"cart_id":   result.CartID,
		"total":     result.Total.StringFixed(2),
		"reference": result.Reference,
	})

	if s.dispatcher != nil {
		// The request may be gone by now; the decrements must still go out.
		s.dispatcher.Dispatch(context.WithoutCancel(ctx), events)
	}

	return result, nil
}

func (s *cartService) checkoutTx(tx *gorm.DB, userID uint, req CheckoutRequest) (*CheckoutResult, []model.StockOutbox, error) {
	carts := s.cartRepo.WithTx(tx)

	cart, err := carts.FindActiveForUpdate(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCartNotFound
		}
		return nil, nil, err
	}

	lines, err := carts.FindCheckoutLines(cart.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, ErrCartEmpty
	}

	for _, line := range lines {
		if line.Stock < line.Quantity {
			return nil, nil, &StockError{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Quantity,
				Available:   line.Stock,
			}
		}
	}

	total := decimal.Zero
	events := make([]model.StockOutbox, 0, len(lines))
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		events = append(events, model.StockOutbox{
			EventID:   uuid.NewString(),
			CartID:    cart.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Status:    model.OutboxPending,
		})
	}

	if err := s.outboxRepo.WithTx(tx).CreateBatch(events); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	cart.CheckedOutAt = &now
	cart.Total = decimal.NewNullDecimal(total)
	cart.Reference = s.newRef()
	cart.ShippingAddress = req.ShippingAddress
	cart.ContactPhone = req.ContactPhone
	if err := carts.Deactivate(cart); err != nil {
		return nil, nil, err
	}

	if _, err := carts.DeleteItemsByCart(cart.ID); err != nil {
		return nil, nil, err
	}

	return &CheckoutResult{
		Total:     total,
		Items:     len(lines),
		CartID:    cart.ID,
		Reference: cart.Reference,
	}, events, nil
}

// Stats aggregates the active cart. Users without one get zeros.
func (s *cartService) Stats(userID uint) (*model.CartStats, error) {
	return s.cartRepo.Stats(userID)
}
