package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"
)

// OrderHandler handles order endpoints.
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// OrderItemRequest is one cart line.
type OrderItemRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0,lte=1000000"`
}

// CreateOrderRequest represents an order placement request.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrder godoc
// @Summary Place an order
// @Description Validates stock for every item, then records the order and decrements stock atomically.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateOrderRequest true "Cart"
// @Success 201 {object} OrderResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}

	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}

	cart := make([]model.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		cart = append(cart, model.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orderService.CreateOrder(c.Request().Context(), middleware.IdentityFrom(c), cart)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusCreated, OrderResponse{
		Message: "order created successfully",
		Order:   order,
	})
}

// ListOrders godoc
// @Summary List the caller's orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} OrderListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c echo.Context) error {
	orders, err := h.orderService.ListOrders(c.Request().Context(), middleware.IdentityFrom(c))
	if err != nil {
		return fail(err)
	}
	if orders == nil {
		orders = []model.Order{}
	}

	return c.JSON(http.StatusOK, OrderListResponse{
		Message: "orders retrieved successfully",
		Orders:  orders,
	})
}

// GetOrder godoc
// @Summary Get one of the caller's orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest("invalid order id", "INVALID_ID")
	}

	order, err := h.orderService.GetOrder(c.Request().Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, OrderResponse{
		Message: "order retrieved successfully",
		Order:   order,
	})
}
