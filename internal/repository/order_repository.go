package repository

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "storefront/internal/errors"
	"storefront/internal/model"
)

// OrderRepository defines order persistence operations.
type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *model.Order, items []model.OrderItem) error
	FindByIDForUser(ctx context.Context, id, userID uint) (*model.Order, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateWithItems inserts the order, its items and the matching stock
// decrements in one transaction. Each decrement only applies while the
// product still holds enough stock; when it does not, the transaction rolls
// back and an *errors.InsufficientStockError is returned.
func (r *orderRepository) CreateWithItems(ctx context.Context, order *model.Order, items []model.OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order has no items", apperrors.ErrInvalidInput)
	}

	demand, err := stockDemand(items)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		// lock product rows in a stable order so concurrent orders cannot deadlock
		for _, line := range demand {
			res := tx.Model(&model.Product{}).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return fmt.Errorf("decrement stock for product %d: %w", line.ProductID, res.Error)
			}
			if res.RowsAffected == 0 {
				return &apperrors.InsufficientStockError{ProductID: line.ProductID, Requested: line.Quantity}
			}
		}

		order.Items = items
		return nil
	})
}

// FindByIDForUser loads an order with items and products, only if userID owns it.
func (r *orderRepository) FindByIDForUser(ctx context.Context, id, userID uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns every order of a user, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID uint) ([]model.Order, error) {
	orders := []model.Order{}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// stockDemand sums requested quantities per product, ordered by product ID.
// Non-positive quantities and sums past model.MaxQuantity are rejected.
func stockDemand(items []model.OrderItem) ([]model.CartItem, error) {
	totals := make(map[uint]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperrors.InvalidInput("product %d: quantity must be a positive integer", item.ProductID)
		}
		if totals[item.ProductID] > model.MaxQuantity-item.Quantity {
			return nil, apperrors.InvalidInput("product %d: total quantity must be at most %d", item.ProductID, model.MaxQuantity)
		}
		totals[item.ProductID] += item.Quantity
	}
	demand := make([]model.CartItem, 0, len(totals))
	for id, qty := range totals {
		demand = append(demand, model.CartItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(demand, func(i, j int) bool { return demand[i].ProductID < demand[j].ProductID })
	return demand, nil
}
