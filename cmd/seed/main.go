package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	"storefront/internal/model"
	"storefront/internal/repository"
)

// SeedProductData is one catalog entry in the seed file.
type SeedProductData struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
	Image string          `json:"image"`
}

func main() {
	var (
		productsSource = flag.String("products", os.Getenv("SEED_PRODUCTS"), "Path or http(s) URL of a JSON product list")
		adminName      = flag.String("admin-name", envOr("ADMIN_NAME", "Administrator"), "Name for a newly created admin")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := db.Migrate(gormDB, false, log); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Database migrations completed")

	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email != "" && password != "" {
		outcome, err := seedAdmin(ctx, repository.NewUserRepository(gormDB), *adminName, email, password)
		if err != nil {
			log.WithError(err).Fatal("Failed to seed admin")
		}
		log.WithField("email", strings.ToLower(email)).Infof("Admin account %s", outcome)
	} else {
		log.Info("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin account")
	}

	if *productsSource == "" {
		log.Info("No product source given, skipping catalog")
		return
	}

	log.Infof("Loading products from: %s", *productsSource)
	raw, err := loadSource(*productsSource)
	if err != nil {
		log.WithError(err).Fatal("Failed to load products")
	}
	products, skipped, err := parseProducts(raw, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to parse products")
	}
	if skipped > 0 {
		log.Warnf("Skipped %d invalid products", skipped)
	}

	created, existing, err := seedProducts(ctx, repository.NewProductRepository(gormDB), products)
	if err != nil {
		log.WithError(err).Fatal("Failed to seed products")
	}

	log.WithFields(logrus.Fields{
		"created":  created,
		"existing": existing,
	}).Info("Seed completed successfully")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadSource reads a local file, or fetches the body of an http(s) URL.
func loadSource(source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(filepath.Clean(source))
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// parseProducts decodes seed entries, dropping ones that could never be valid
// catalog items.
func parseProducts(raw []byte, log logrus.FieldLogger) ([]model.Product, int, error) {
	var items []SeedProductData
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to parse JSON: %w", err)
	}

	products := make([]model.Product, 0, len(items))
	skipped := 0
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.Price.IsNegative() || item.Price.Round(2).GreaterThanOrEqual(model.MaxPrice) ||
			item.Stock < 0 || item.Stock > model.MaxStock {
			log.WithField("name", item.Name).Warn("Skipping invalid product")
			skipped++
			continue
		}

		product := model.Product{
			Name:  name,
			Price: item.Price.Round(2),
			Stock: item.Stock,
		}
		if image := strings.TrimSpace(item.Image); image != "" {
			product.Image = &image
		}
		products = append(products, product)
	}
	return products, skipped, nil
}

// seedProducts inserts products whose name is not in the catalog yet.
func seedProducts(ctx context.Context, repo repository.ProductRepository, products []model.Product) (created int, existing int, err error) {
	for i := range products {
		_, err := repo.FindByName(ctx, products[i].Name)
		switch {
		case err == nil:
			existing++
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return created, existing, fmt.Errorf("error checking product %q: %w", products[i].Name, err)
		}

		if err := repo.Create(ctx, &products[i]); err != nil {
			return created, existing, fmt.Errorf("error creating product %q: %w", products[i].Name, err)
		}
		created++
	}
	return created, existing, nil
}

// seedAdmin creates an admin account, or promotes the existing user with
// that email. The password of an existing user is never changed.
func seedAdmin(ctx context.Context, repo repository.UserRepository, name, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsAdmin() {
			return "already present", nil
		}
		if err := repo.Update(ctx, user.ID, map[string]interface{}{"role": model.RoleAdmin}); err != nil {
			return "", fmt.Errorf("promote %s: %w", email, err)
		}
		return "promoted", nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("look up %s: %w", email, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	admin := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("create %s: %w", email, err)
	}
	return "created", nil
}
