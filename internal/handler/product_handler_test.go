package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/service"
)

func TestProductHandler_ListProducts(t *testing.T) {
	svc := new(MockProductService)
	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.ProductFilter) bool {
		return f.Page == 2 && f.Limit == 5 && f.Search == "lamp" &&
			f.MinPrice != nil && f.MinPrice.Equal(decimal.NewFromInt(10)) &&
			f.MaxPrice == nil
	})).Return(&model.ProductPage{
		Products:   []model.Product{{ID: 6, Name: "Desk lamp", Price: decimal.RequireFromString("24.50"), Stock: 3}},
		Pagination: model.NewPagination(2, 5, 6),
	}, nil)

	rec, _ := serve(t, NewProductHandler(svc).ListProducts, testRequest{
		method: http.MethodGet,
		target: "/api/products?page=2&limit=5&search=lamp&minPrice=10&maxPrice=cheap",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "products retrieved successfully", body["message"])
	assert.Len(t, body["products"], 1)
	assert.Equal(t, map[string]interface{}{
		"currentPage": float64(2),
		"totalPages":  float64(2),
		"totalCount":  float64(6),
		"hasNext":     false,
		"hasPrev":     true,
	}, body["pagination"])
	svc.AssertExpectations(t)
}

func TestProductHandler_GetProduct(t *testing.T) {
	svc := new(MockProductService)
	svc.On("Get", mock.Anything, uint(7)).Return(&model.Product{ID: 7, Name: "Lamp"}, nil)
	svc.On("Get", mock.Anything, uint(8)).Return(nil, apperrors.ErrProductNotFound)
	h := NewProductHandler(svc)

	rec, _ := serve(t, h.GetProduct, testRequest{method: http.MethodGet, target: "/api/products/7", id: "7"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, h.GetProduct, testRequest{method: http.MethodGet, target: "/api/products/8", id: "8"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product not found", decode(t, rec)["error"])

	rec, _ = serve(t, h.GetProduct, testRequest{method: http.MethodGet, target: "/api/products/lamp", id: "lamp"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Get", mock.Anything, uint(0))
}

func TestProductHandler_CreateProduct(t *testing.T) {
	svc := new(MockProductService)
	svc.On("Create", mock.Anything, adminClaims.Identity(), mock.MatchedBy(func(in service.ProductInput) bool {
		return in.Name == "Lamp" && in.Price.Equal(decimal.RequireFromString("19.99")) && in.Stock == 4 && in.Image == nil
	})).Return(&model.Product{ID: 9, Name: "Lamp"}, nil)
	svc.On("Create", mock.Anything, customerClaims.Identity(), mock.Anything).Return(nil, apperrors.ErrForbidden)
	h := NewProductHandler(svc)

	rec, _ := serve(t, h.CreateProduct, testRequest{method: http.MethodPost, target: "/api/products", body: `{"name":"Lamp","price":19.99,"stock":4}`, claims: adminClaims})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "product created successfully", decode(t, rec)["message"])

	rec, _ = serve(t, h.CreateProduct, testRequest{method: http.MethodPost, target: "/api/products", body: `{"name":"Lamp","price":19.99,"stock":4}`, claims: customerClaims})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = serve(t, h.CreateProduct, testRequest{method: http.MethodPost, target: "/api/products", body: `{"name":"Lamp","stock":4}`, claims: adminClaims})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price is required", decode(t, rec)["error"])

	rec, _ = serve(t, h.CreateProduct, testRequest{method: http.MethodPost, target: "/api/products", body: `{"name":"Lamp","price":1,"stock":-1}`, claims: adminClaims})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "stock must be at least 0", decode(t, rec)["error"])
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	svc := new(MockProductService)
	svc.On("Update", mock.Anything, adminClaims.Identity(), uint(7), mock.MatchedBy(func(p model.ProductPatch) bool {
		return p.Stock != nil && *p.Stock == 0 && p.Name == nil && p.Price == nil
	})).Return(&model.Product{ID: 7, Stock: 0}, nil)
	h := NewProductHandler(svc)

	rec, _ := serve(t, h.UpdateProduct, testRequest{method: http.MethodPut, target: "/api/products/7", id: "7", body: `{"stock":0}`, claims: adminClaims})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "product updated successfully", decode(t, rec)["message"])

	rec, _ = serve(t, h.UpdateProduct, testRequest{method: http.MethodPut, target: "/api/products/x", id: "x", body: `{"stock":0}`, claims: adminClaims})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	svc := new(MockProductService)
	svc.On("Delete", mock.Anything, adminClaims.Identity(), uint(3)).Return(nil)
	svc.On("Delete", mock.Anything, adminClaims.Identity(), uint(4)).Return(apperrors.ErrProductInUse)
	svc.On("Delete", mock.Anything, adminClaims.Identity(), uint(5)).Return(errors.New("deadlock found"))
	h := NewProductHandler(svc)

	rec, _ := serve(t, h.DeleteProduct, testRequest{method: http.MethodDelete, target: "/api/products/3", id: "3", claims: adminClaims})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "product deleted successfully", decode(t, rec)["message"])

	rec, _ = serve(t, h.DeleteProduct, testRequest{method: http.MethodDelete, target: "/api/products/4", id: "4", claims: adminClaims})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, hook := serve(t, h.DeleteProduct, testRequest{method: http.MethodDelete, target: "/api/products/5", id: "5", claims: adminClaims})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request failed", hook.LastEntry().Message)
}
