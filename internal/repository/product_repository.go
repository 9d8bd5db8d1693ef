package repository

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"storefront/internal/model"
)

// ProductRepository defines product persistence operations.
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Product, error)
	FindByName(ctx context.Context, name string) (*model.Product, error)
	List(ctx context.Context, filter model.ProductFilter) ([]model.Product, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create creates a new product.
func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID finds a product by ID.
func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs fetches every product whose ID is in ids with a single query.
// Missing IDs are simply absent from the result.
func (r *productRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindByName finds a product by its exact name.
func (r *productRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns one page of products matching filter together with the total
// number of matches. The page and the count run concurrently over the same
// filter.
func (r *productRepository) List(ctx context.Context, filter model.ProductFilter) ([]model.Product, int64, error) {
	var (
		products []model.Product
		total    int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.filtered(gctx, filter).
			Order("id ASC").
			Offset(filter.Offset()).
			Limit(filter.Limit).
			Find(&products).Error
	})
	g.Go(func() error {
		return r.filtered(gctx, filter).Count(&total).Error
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, total, nil
}

func (r *productRepository) filtered(ctx context.Context, filter model.ProductFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.Search != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	return q
}

// escapeLike neutralises LIKE wildcards so a search is a plain substring match.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// Update applies a column map to one product.
func (r *productRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return updateByID(ctx, r.db, &model.Product{}, id, updates)
}

// Delete hard-deletes a product.
func (r *productRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
