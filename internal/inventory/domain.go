package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action enumerates stock movements.
type Action string

const (
	// ActionAdd increases stock.
	ActionAdd Action = "add"
	// ActionReduce decreases stock; it never drives the balance below zero.
	ActionReduce Action = "reduce"
)

// Item is an inventory row. StockQuantity is derived from the stock transactions.
type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"item_name"`
	CategoryID    *int64          `json:"category_id"`
	CategoryName  string          `json:"category_name,omitempty"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	Unit          Unit            `json:"unit"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	StockDisplay  string          `json:"stock_display"`
	IsDeleted     bool            `json:"is_deleted"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockTransaction is one append-only stock movement.
type StockTransaction struct {
	ID           int64           `json:"id"`
	InventoryID  int64           `json:"inventory_id"`
	BatchID      uuid.UUID       `json:"batch_id"`
	Type         Action          `json:"transaction_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         Unit            `json:"unit"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	InvoiceID    *int64          `json:"invoice_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CreateInput registers an inventory item with its opening stock.
type CreateInput struct {
	Name       string
	CategoryID *int64
	Unit       string
	Kilo       decimal.Decimal
	Grams      decimal.Decimal
}

// AdjustInput edits an item. Without Action only the name and category change.
type AdjustInput struct {
	InventoryID int64
	ItemName    *string
	CategoryID  *int64
	Action      Action
	Unit        string
	Kilo        decimal.Decimal
	Grams       decimal.Decimal
}

// AdjustResult reports the outcome of Adjust.
type AdjustResult struct {
	Message     string            `json:"message"`
	Transaction *StockTransaction `json:"transaction,omitempty"`
}

// Movement is a stock change requested inside a transaction.
type Movement struct {
	InventoryID int64
	BatchID     uuid.UUID
	Action      Action
	Quantity    decimal.Decimal
	Unit        Unit
	InvoiceID   *int64
}

// SalesFilter selects the invoice window for ListWithSales.
type SalesFilter struct {
	Start   time.Time
	End     time.Time
	ShowAll bool
}

// SalesRow is an item joined with its sales in the window and its linked products' average MRP.
type SalesRow struct {
	Item       Item
	SoldQty    decimal.Decimal
	SoldAmount decimal.Decimal
	AvgMRP     decimal.Decimal
}

// ItemSales is one line of the inventory analytics.
type ItemSales struct {
	Item
	TotalSoldQty     decimal.Decimal `json:"total_sold_qty"`
	TotalSalesAmount decimal.Decimal `json:"total_sales_amount"`
	TotalMRPAmount   decimal.Decimal `json:"total_mrp_amount"`
	ProfitAmount     decimal.Decimal `json:"profit_amount"`
}

// SalesReport is the inventory analytics for a date window.
type SalesReport struct {
	Start            string          `json:"start_date"`
	End              string          `json:"end_date"`
	ShowAll          bool            `json:"show_all"`
	TotalItems       int             `json:"total_items"`
	TotalSoldQty     decimal.Decimal `json:"total_sold_qty"`
	TotalSalesAmount decimal.Decimal `json:"total_sales_amount"`
	TotalMRPAmount   decimal.Decimal `json:"total_mrp_amount"`
	TotalProfit      decimal.Decimal `json:"total_profit_amount"`
	Data             []ItemSales     `json:"data"`
}
