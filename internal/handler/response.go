package handler

import "storefront/internal/model"

// MessageResponse is returned by operations without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// UserResponse wraps a user profile.
type UserResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// ProductResponse wraps a single product.
type ProductResponse struct {
	Message string         `json:"message"`
	Product *model.Product `json:"product"`
}

// ProductListResponse is one page of the catalog.
type ProductListResponse struct {
	Message    string           `json:"message"`
	Products   []model.Product  `json:"products"`
	Pagination model.Pagination `json:"pagination"`
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Message string       `json:"message"`
	Order   *model.Order `json:"order"`
}

// OrderListResponse lists the caller's orders.
type OrderListResponse struct {
	Message string        `json:"message"`
	Orders  []model.Order `json:"orders"`
}
