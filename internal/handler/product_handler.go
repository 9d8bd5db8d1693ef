package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"
)

// ProductHandler handles catalog endpoints.
type ProductHandler struct {
	productService service.ProductService
}

// NewProductHandler creates a new product handler.
func NewProductHandler(productService service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// CreateProductRequest represents a new catalog item.
type CreateProductRequest struct {
	Name  string           `json:"name" validate:"required"`
	Price *decimal.Decimal `json:"price" validate:"required" swaggertype:"number"`
	Stock *int             `json:"stock" validate:"required,gte=0"`
	Image *string          `json:"image,omitempty"`
}

// UpdateProductRequest carries any subset of product fields.
type UpdateProductRequest struct {
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty" swaggertype:"number"`
	Stock *int             `json:"stock,omitempty"`
	Image *string          `json:"image,omitempty"`
}

// ListProducts godoc
// @Summary List products
// @Tags products
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Param search query string false "Case-insensitive name substring"
// @Param minPrice query number false "Lowest price"
// @Param maxPrice query number false "Highest price"
// @Success 200 {object} ProductListResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products [get]
func (h *ProductHandler) ListProducts(c echo.Context) error {
	filter := model.ProductFilter{
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
		Search:   c.QueryParam("search"),
		MinPrice: queryDecimal(c, "minPrice"),
		MaxPrice: queryDecimal(c, "maxPrice"),
	}

	page, err := h.productService.List(c.Request().Context(), filter)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, ProductListResponse{
		Message:    "products retrieved successfully",
		Products:   page.Products,
		Pagination: page.Pagination,
	})
}

// GetProduct godoc
// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest("invalid product id", "INVALID_ID")
	}

	product, err := h.productService.Get(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, ProductResponse{
		Message: "product retrieved successfully",
		Product: product,
	})
}

// CreateProduct godoc
// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProductRequest true "Product data"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products [post]
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}

	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}

	product, err := h.productService.Create(c.Request().Context(), middleware.IdentityFrom(c), service.ProductInput{
		Name:  req.Name,
		Price: *req.Price,
		Stock: *req.Stock,
		Image: req.Image,
	})
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusCreated, ProductResponse{
		Message: "product created successfully",
		Product: product,
	})
}

// UpdateProduct godoc
// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Param request body UpdateProductRequest true "Fields to change"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products/{id} [put]
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest("invalid product id", "INVALID_ID")
	}

	var req UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}

	product, err := h.productService.Update(c.Request().Context(), middleware.IdentityFrom(c), id, model.ProductPatch{
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
		Image: req.Image,
	})
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, ProductResponse{
		Message: "product updated successfully",
		Product: product,
	})
}

// DeleteProduct godoc
// @Summary Delete product
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest("invalid product id", "INVALID_ID")
	}

	if err := h.productService.Delete(c.Request().Context(), middleware.IdentityFrom(c), id); err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "product deleted successfully"})
}

// pathID parses the :id path parameter as a positive integer.
func pathID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryInt returns 0 for a missing or malformed parameter.
func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}

func queryDecimal(c echo.Context, name string) *decimal.Decimal {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}
