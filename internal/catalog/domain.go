// Package catalog manages GST categories, sellable products and their barcodes.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Barcode states of a product.
const (
	BarcodeNotGenerated = "barcode not generated"
	BarcodeUpdated      = "barcode updated"
	BarcodeNotUpdated   = "barcode not updated"
)

// Category groups products and inventory items under one GST rate.
type Category struct {
	ID        int64           `json:"id"`
	Name      string          `json:"category_name"`
	CGST      decimal.Decimal `json:"cgst"`
	SGST      decimal.Decimal `json:"sgst"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GST is the combined rate of the category.
func (c Category) GST() decimal.Decimal { return c.CGST.Add(c.SGST) }

// CategoryInput creates or replaces a category.
type CategoryInput struct {
	Name string
	CGST decimal.Decimal
	SGST decimal.Decimal
}

// Product is a sellable item. When linked to an inventory item, the item's name and category win.
type Product struct {
	ID                int64            `json:"id"`
	Name              string           `json:"product_name"`
	CategoryID        *int64           `json:"category_id"`
	CategoryName      string           `json:"category_name,omitempty"`
	CGST              decimal.Decimal  `json:"cgst"`
	SGST              decimal.Decimal  `json:"sgst"`
	InventoryItemID   *int64           `json:"inventory_item_id"`
	InventoryQuantity *decimal.Decimal `json:"inventory_quantity,omitempty"`
	Unit              string           `json:"unit"`
	Kilo              decimal.Decimal  `json:"kilo"`
	Grams             decimal.Decimal  `json:"grams"`
	MRP               decimal.Decimal  `json:"mrp"`
	SaleMRP           decimal.Decimal  `json:"saleMrp"`
	MfgDate           *time.Time       `json:"mfg_date"`
	ExpDate           *time.Time       `json:"exp_date"`
	BarcodeID         string           `json:"barcode_id,omitempty"`
	BarcodePath       string           `json:"barcode_path,omitempty"`
	BarcodeStatus     string           `json:"barcode_status"`
	IsDeleted         bool             `json:"is_deleted"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ProductInput creates a product.
type ProductInput struct {
	Name            string
	CategoryID      *int64
	InventoryItemID *int64
	Unit            string
	Kilo            decimal.Decimal
	Grams           decimal.Decimal
	MRP             decimal.Decimal
	SaleMRP         decimal.Decimal
	MfgDate         *time.Time
	ExpDate         *time.Time
}

// ProductUpdate changes the non-nil fields of a product. ClearMfgDate and ClearExpDate drop the dates.
type ProductUpdate struct {
	Name            *string
	CategoryID      *int64
	InventoryItemID *int64
	Unit            *string
	Kilo            *decimal.Decimal
	Grams           *decimal.Decimal
	MRP             *decimal.Decimal
	SaleMRP         *decimal.Decimal
	MfgDate         *time.Time
	ExpDate         *time.Time
	ClearMfgDate    bool
	ClearExpDate    bool
}

// LinkedItem is the part of an inventory item a product inherits.
type LinkedItem struct {
	ID         int64
	Name       string
	CategoryID *int64
	Unit       string
	IsDeleted  bool
}

// BarcodeAssignment is returned when a barcode id is bound to a product.
type BarcodeAssignment struct {
	ProductID int64  `json:"product_id"`
	BarcodeID string `json:"barcode_id"`
	Path      string `json:"barcode_path"`
	Status    string `json:"barcode_status"`
}

// CategoryRate picks a product's GST percent. The category of the linked inventory item wins
// over the product's own category; with neither the rate is zero.
func CategoryRate(linked, own decimal.NullDecimal) decimal.Decimal {
	switch {
	case linked.Valid:
		return linked.Decimal
	case own.Valid:
		return own.Decimal
	default:
		return decimal.Zero
	}
}

// TaxRates holds the combined GST percent (CGST+SGST) of products and inventory items.
// Entries without a category are present with a zero rate.
type TaxRates struct {
	Products  map[int64]decimal.Decimal
	Inventory map[int64]decimal.Decimal
}
