package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"storefront/internal/auth"
	"storefront/internal/cache"
	apperrors "storefront/internal/errors"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"
)

// OrderService handles order placement and retrieval.
type OrderService interface {
	CreateOrder(ctx context.Context, identity auth.Identity, cart []model.CartItem) (*model.Order, error)
	ListOrders(ctx context.Context, identity auth.Identity) ([]model.Order, error)
	GetOrder(ctx context.Context, identity auth.Identity, id uint) (*model.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	cache       *cache.Client
	log         logrus.FieldLogger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	cache *cache.Client,
	log logrus.FieldLogger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		cache:       cache,
		log:         log,
	}
}

// CreateOrder validates the cart against a snapshot of the referenced
// products, computes the total and commits the order, its items and the
// stock decrements atomically. Stock is enforced again inside the
// transaction, so a concurrent purchase cannot oversell.
func (s *orderService) CreateOrder(ctx context.Context, identity auth.Identity, cart []model.CartItem) (*model.Order, error) {
	if identity.ID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	if len(cart) == 0 {
		return nil, apperrors.InvalidInput("items must be a non-empty array")
	}

	ids := make([]uint, 0, len(cart))
	demand := make(map[uint]int, len(cart))
	for i, item := range cart {
		if item.ProductID == 0 {
			return nil, apperrors.InvalidInput("items[%d]: productId is required", i)
		}
		if item.Quantity <= 0 {
			return nil, apperrors.InvalidInput("items[%d]: quantity must be a positive integer", i)
		}
		if item.Quantity > model.MaxQuantity {
			return nil, apperrors.InvalidInput("items[%d]: quantity must be at most %d", i, model.MaxQuantity)
		}
		current, seen := demand[item.ProductID]
		if !seen {
			ids = append(ids, item.ProductID)
		}
		if current > model.MaxQuantity-item.Quantity {
			return nil, apperrors.InvalidInput("product %d: total quantity must be at most %d", item.ProductID, model.MaxQuantity)
		}
		demand[item.ProductID] = current + item.Quantity
	}

	user, err := s.userRepo.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load purchaser: %w", err)
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uint]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			metrics.RecordOrderRejected("unknown_product")
			return nil, apperrors.InvalidInput("product %d not found", id)
		}
		if product.Stock < demand[id] {
			metrics.RecordOrderRejected("insufficient_stock")
			return nil, &apperrors.InsufficientStockError{
				ProductID: id,
				Name:      product.Name,
				Available: product.Stock,
				Requested: demand[id],
			}
		}
	}

	total := decimal.Zero
	units := 0
	items := make([]model.OrderItem, 0, len(cart))
	for _, line := range cart {
		product := byID[line.ProductID]
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		units += line.Quantity
		items = append(items, model.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}

	total = total.Round(2)
	if total.GreaterThanOrEqual(model.MaxOrderTotal) {
		metrics.RecordOrderRejected("total_too_large")
		return nil, apperrors.InvalidInput("order total must be less than %s", model.MaxOrderTotal.String())
	}

	order := &model.Order{
		UserID: user.ID,
		Total:  total,
	}
	if err := s.orderRepo.CreateWithItems(ctx, order, items); err != nil {
		var stockErr *apperrors.InsufficientStockError
		if errors.As(err, &stockErr) {
			if p, ok := byID[stockErr.ProductID]; ok {
				stockErr.Name = p.Name
			}
			metrics.RecordOrderRejected("insufficient_stock")
			return nil, stockErr
		}
		metrics.RecordOrderRejected("storage")
		return nil, fmt.Errorf("create order: %w", err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productCacheKey(id))
	}
	_ = s.cache.Delete(ctx, keys...)

	metrics.RecordOrderCreated(units)
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  user.ID,
		"total":    order.Total.StringFixed(2),
		"items":    len(items),
	}).Info("order created")

	created, err := s.orderRepo.FindByIDForUser(ctx, order.ID, user.ID)
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("reload created order")
		created = order
		for i := range created.Items {
			p := byID[created.Items[i].ProductID]
			created.Items[i].Product = &p
		}
	}
	user.Orders = nil
	created.User = user
	return created, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, identity auth.Identity) ([]model.Order, error) {
	if identity.ID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	orders, err := s.orderRepo.ListByUser(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one of the caller's orders. Orders owned by anyone else
// are reported as not found.
func (s *orderService) GetOrder(ctx context.Context, identity auth.Identity, id uint) (*model.Order, error) {
	if identity.ID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	if id == 0 {
		return nil, apperrors.InvalidInput("invalid order id")
	}
	order, err := s.orderRepo.FindByIDForUser(ctx, id, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}
