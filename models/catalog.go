package models

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product and Customer are read-only reference data owned by the catalog and
// customer services. The ledger only looks them up.

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ProductId string          `gorm:"size:64;not null;uniqueIndex" json:"productId"`
	Name      string          `gorm:"size:255" json:"name"`
	Supplier  string          `gorm:"size:255" json:"supplier"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	CustomerId string    `gorm:"size:64;not null;uniqueIndex" json:"customerId"`
	Name       string    `gorm:"size:255" json:"name"`
	Address    string    `gorm:"size:500" json:"address"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ProductCatalog returns nil, nil for an unknown product.
type ProductCatalog interface {
	LookupProduct(ctx context.Context, productId string) (*Product, error)
}

// CustomerDirectory returns nil, nil for an unknown customer.
type CustomerDirectory interface {
	LookupCustomer(ctx context.Context, customerId string) (*Customer, error)
}

type dbProductCatalog struct{}

func (dbProductCatalog) LookupProduct(ctx context.Context, productId string) (*Product, error) {
	var product Product
	err := config.GetDB().WithContext(ctx).Where("product_id = ?", productId).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

type dbCustomerDirectory struct{}

func (dbCustomerDirectory) LookupCustomer(ctx context.Context, customerId string) (*Customer, error) {
	var customer Customer
	err := config.GetDB().WithContext(ctx).Where("customer_id = ?", customerId).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

var (
	collaboratorsMu   sync.RWMutex
	productCatalog    ProductCatalog    = dbProductCatalog{}
	customerDirectory CustomerDirectory = dbCustomerDirectory{}
)

// SetProductCatalog replaces the catalog and returns the previous one.
func SetProductCatalog(c ProductCatalog) ProductCatalog {
	collaboratorsMu.Lock()
	defer collaboratorsMu.Unlock()
	prev := productCatalog
	productCatalog = c
	return prev
}

// SetCustomerDirectory replaces the directory and returns the previous one.
func SetCustomerDirectory(d CustomerDirectory) CustomerDirectory {
	collaboratorsMu.Lock()
	defer collaboratorsMu.Unlock()
	prev := customerDirectory
	customerDirectory = d
	return prev
}

func getProductCatalog() ProductCatalog {
	collaboratorsMu.RLock()
	defer collaboratorsMu.RUnlock()
	return productCatalog
}

func getCustomerDirectory() CustomerDirectory {
	collaboratorsMu.RLock()
	defer collaboratorsMu.RUnlock()
	return customerDirectory
}

// lookupSupplier is best effort: a catalog failure leaves the supplier empty.
func lookupSupplier(ctx context.Context, productId string) string {
	product, err := getProductCatalog().LookupProduct(ctx, productId)
	if err != nil {
		config.LogError(config.GetLogger(), "Catalog", "lookupSupplier", "Error looking up product", productId, err)
		return ""
	}
	if product == nil {
		return ""
	}
	return product.Supplier
}

func lookupProductName(ctx context.Context, productId string) string {
	product, err := getProductCatalog().LookupProduct(ctx, productId)
	if err != nil || product == nil {
		return ""
	}
	return product.Name
}

func lookupCustomerName(ctx context.Context, customerId string) string {
	customer, err := getCustomerDirectory().LookupCustomer(ctx, customerId)
	if err != nil {
		config.LogError(config.GetLogger(), "Catalog", "lookupCustomerName", "Error looking up customer", customerId, err)
		return ""
	}
	if customer == nil {
		return ""
	}
	return customer.Name
}
