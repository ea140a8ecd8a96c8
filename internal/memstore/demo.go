package memstore

import (
	"github.com/shopspring/decimal"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
)

// SeedDemo loads a small two-store mall so STORAGE=memory is usable without a database.
func SeedDemo(m *Store) {
	m.PutStore(catalog.Store{ID: 1, Slug: "ferreteria-el-roble", Name: "Ferretería El Roble", Address: "Av. Principal 123", PrimaryColor: "#2e7d32", DeliveryTimeMin: 1, DeliveryTimeMax: 3})
	m.PutStore(catalog.Store{ID: 2, Slug: "jardin-del-valle", Name: "Jardín del Valle", Address: "Camino Real 45", PrimaryColor: "#8d6e63", DeliveryTimeMin: 2, DeliveryTimeMax: 5})

	m.PutProduct(catalog.Product{ID: 1, StoreID: 1, Name: "Taladro percutor", Price: decimal.NewFromInt(1000), StockQuantity: 25, StockMinThreshold: 5, Active: true, ServiceType: "product"})
	m.PutProduct(catalog.Product{ID: 2, StoreID: 1, Name: "Juego de brocas", Price: decimal.NewFromInt(250), StockQuantity: 4, StockMinThreshold: 5, Active: true, ServiceType: "product"})
	m.PutProduct(catalog.Product{ID: 3, StoreID: 2, Name: "Maceta de greda", Price: decimal.NewFromInt(400), StockQuantity: 40, StockMinThreshold: 10, Active: true, ServiceType: "product"})
	m.PutProduct(catalog.Product{ID: 4, StoreID: 2, Name: "Poda a domicilio", Price: decimal.NewFromInt(1500), StockQuantity: 0, StockMinThreshold: 0, Active: true, ServiceType: "service"})

	m.PutShippingMethod(catalog.ShippingMethod{ID: 1, ProductID: 1, Name: "Despacho estándar", Cost: decimal.NewFromInt(300)})
	m.PutShippingMethod(catalog.ShippingMethod{ID: 2, ProductID: 1, Name: "Despacho express", Cost: decimal.NewFromInt(600)})
	m.PutShippingMethod(catalog.ShippingMethod{ID: 3, ProductID: 3, Name: "Despacho estándar", Cost: decimal.NewFromInt(200)})

	m.PutCoupon(coupon.Coupon{Code: "SAVE10", DiscountType: coupon.Percentage, DiscountValue: decimal.NewFromInt(10), MinOrderAmount: decimal.NewFromInt(1000), Active: true})
	limit := 1
	m.PutCoupon(coupon.Coupon{Code: "BIENVENIDA", DiscountType: coupon.Fixed, DiscountValue: decimal.NewFromInt(150), MinOrderAmount: decimal.Zero, UsageLimit: &limit, Active: true})
}
