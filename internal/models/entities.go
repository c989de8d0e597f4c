// Package models defines the domain records held in the Durable Local Store
// and the sync-layer types built from them (operations, snapshots, backups).
package models

import "time"

// Product is a sellable menu item.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InventoryItem is a stock-tracked ingredient or supply.
type InventoryItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"` // kg, pieces, liters, ...
	CostPerUnit float64    `json:"costPerUnit"`
	Threshold   float64    `json:"threshold"` // low-stock alert level
	Category    string     `json:"category,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	Supplier    string     `json:"supplier,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

// Order is a completed or in-flight sale.
type Order struct {
	ID            string      `json:"id"`
	OrderNumber   string      `json:"orderNumber"`
	Items         []OrderItem `json:"items"`
	Subtotal      float64     `json:"subtotal"`
	Discount      float64     `json:"discount"`
	DiscountType  string      `json:"discountType"` // flat | percentage
	Tax           float64     `json:"tax"`
	Total         float64     `json:"total"`
	PaymentMethod string      `json:"paymentMethod"` // cash | card | upi
	PaymentStatus string      `json:"paymentStatus"` // pending | completed | failed
	CashierID     string      `json:"cashierId"`
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerPhone string      `json:"customerPhone,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Setting is a single key/value configuration row (store name, tax rate, ...).
type Setting struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Type      string    `json:"type"` // string | number | boolean
	UpdatedAt time.Time `json:"updatedAt"`
}
