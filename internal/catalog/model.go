package catalog

import "github.com/shopspring/decimal"

type Store struct {
	ID              int64  `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Address         string `json:"address"`
	PrimaryColor    string `json:"primaryColor"`
	DeliveryTimeMin int    `json:"deliveryTimeMin"`
	DeliveryTimeMax int    `json:"deliveryTimeMax"`
}

type Product struct {
	ID                int64           `json:"id"`
	StoreID           int64           `json:"storeId"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stockQuantity"`
	StockMinThreshold int             `json:"stockMinThreshold"`
	Active            bool            `json:"active"`
	ServiceType       string          `json:"serviceType"`
}

// ServiceTypeService marks products that are booked rather than shipped; they carry no stock.
const ServiceTypeService = "service"

func (p Product) TracksStock() bool {
	return p.ServiceType != ServiceTypeService
}

// LowStock reports whether the product is at or below its restock threshold.
func (p Product) LowStock() bool {
	return p.TracksStock() && p.StockQuantity <= p.StockMinThreshold
}

type ShippingMethod struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Cost      decimal.Decimal `json:"cost"`
}
