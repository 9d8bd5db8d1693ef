package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/auth"
	"storefront/internal/cache"
	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/repository"
)

const productCacheTTL = 5 * time.Minute

func productCacheKey(id uint) string {
	return fmt.Sprintf("product:%d", id)
}

// ProductInput is the full set of fields for a new product.
type ProductInput struct {
	Name  string
	Price decimal.Decimal
	Stock int
	Image *string
}

// ProductService handles catalog operations.
type ProductService interface {
	List(ctx context.Context, filter model.ProductFilter) (*model.ProductPage, error)
	Get(ctx context.Context, id uint) (*model.Product, error)
	Create(ctx context.Context, actor auth.Identity, input ProductInput) (*model.Product, error)
	Update(ctx context.Context, actor auth.Identity, id uint, patch model.ProductPatch) (*model.Product, error)
	Delete(ctx context.Context, actor auth.Identity, id uint) error
}

type productService struct {
	repo  repository.ProductRepository
	cache *cache.Client
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, cache *cache.Client) ProductService {
	return &productService{repo: repo, cache: cache}
}

// List returns one page of the catalog with pagination metadata.
func (s *productService) List(ctx context.Context, filter model.ProductFilter) (*model.ProductPage, error) {
	filter = filter.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &model.ProductPage{
		Products:   products,
		Pagination: model.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// Get retrieves a product by ID with caching.
func (s *productService) Get(ctx context.Context, id uint) (*model.Product, error) {
	if id == 0 {
		return nil, apperrors.InvalidInput("invalid product id")
	}

	if data, _ := s.cache.Get(ctx, productCacheKey(id)); data != nil {
		var cached model.Product
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, productLookupError(err)
	}

	if payload, err := json.Marshal(product); err == nil {
		_ = s.cache.Set(ctx, productCacheKey(id), payload, productCacheTTL)
	}
	return product, nil
}

// Create adds a product to the catalog. Admin only.
func (s *productService) Create(ctx context.Context, actor auth.Identity, input ProductInput) (*model.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	price, err := checkPrice(input.Price)
	if err != nil {
		return nil, err
	}
	if err := checkStock(input.Stock); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:  name,
		Price: price,
		Stock: input.Stock,
		Image: normalizeImage(input.Image),
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// Update applies the present fields of patch to a product. Admin only.
func (s *productService) Update(ctx context.Context, actor auth.Identity, id uint, patch model.ProductPatch) (*model.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, apperrors.InvalidInput("invalid product id")
	}
	if patch.Empty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		patch.Name = &name
	}
	if patch.Price != nil {
		price, err := checkPrice(*patch.Price)
		if err != nil {
			return nil, err
		}
		patch.Price = &price
	}
	if patch.Stock != nil {
		if err := checkStock(*patch.Stock); err != nil {
			return nil, err
		}
	}

	updates := patch.Updates()
	if patch.Image != nil {
		if image := normalizeImage(patch.Image); image != nil {
			updates["image"] = *image
		} else {
			// an empty image clears it
			updates["image"] = nil
		}
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, productLookupError(err)
	}
	_ = s.cache.Delete(ctx, productCacheKey(id))

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, productLookupError(err)
	}
	return product, nil
}

// Delete hard-deletes a product. Admin only.
func (s *productService) Delete(ctx context.Context, actor auth.Identity, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == 0 {
		return apperrors.InvalidInput("invalid product id")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return apperrors.ErrProductInUse
		}
		return productLookupError(err)
	}
	_ = s.cache.Delete(ctx, productCacheKey(id))
	return nil
}

func requireAdmin(actor auth.Identity) error {
	if actor.ID == 0 {
		return apperrors.ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return nil
}

// checkPrice rounds price to cents and keeps it within the price column.
func checkPrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, apperrors.InvalidInput("price must be non-negative")
	}
	rounded := price.Round(2)
	if rounded.GreaterThanOrEqual(model.MaxPrice) {
		return decimal.Zero, apperrors.InvalidInput("price must be less than %s", model.MaxPrice.String())
	}
	return rounded, nil
}

func checkStock(stock int) error {
	if stock < 0 {
		return apperrors.InvalidInput("stock must be a non-negative integer")
	}
	if stock > model.MaxStock {
		return apperrors.InvalidInput("stock must be at most %d", model.MaxStock)
	}
	return nil
}

func normalizeImage(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func productLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrProductNotFound
	}
	return fmt.Errorf("product storage: %w", err)
}
