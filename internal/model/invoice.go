package model

import "time"

// 发票状态
const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusOverdue = "OVERDUE"
)

// Vendor 对应业务库中的 "Vendor" 表。
type Vendor struct {
	ID      int64   `gorm:"primaryKey;column:id" json:"id"`
	Name    string  `gorm:"column:name" json:"name"`
	Address *string `gorm:"column:address" json:"address,omitempty"`
	TaxID   *string `gorm:"column:taxId" json:"taxId,omitempty"`
}

func (Vendor) TableName() string { return "Vendor" }

// Invoice 对应业务库中的 "Invoice" 表，列名沿用业务库的 camelCase。
type Invoice struct {
	ID            int64     `gorm:"primaryKey;column:id" json:"id"`
	InvoiceNumber string    `gorm:"column:invoiceNumber" json:"invoiceNumber"`
	IssueDate     time.Time `gorm:"column:issueDate" json:"issueDate"`
	DueDate       time.Time `gorm:"column:dueDate" json:"dueDate"`
	TotalAmount   float64   `gorm:"column:totalAmount" json:"totalAmount"`
	Currency      string    `gorm:"column:currency" json:"currency,omitempty"`
	Status        string    `gorm:"column:status" json:"status"`
	VendorID      int64     `gorm:"column:vendorId" json:"vendorId"`
	Vendor        Vendor    `gorm:"foreignKey:VendorID" json:"-"`
}

func (Invoice) TableName() string { return "Invoice" }

// LineItem 对应业务库中的 "LineItem" 表。
type LineItem struct {
	ID          int64   `gorm:"primaryKey;column:id" json:"id"`
	Description string  `gorm:"column:description" json:"description"`
	Quantity    float64 `gorm:"column:quantity" json:"quantity"`
	UnitPrice   float64 `gorm:"column:unitPrice" json:"unitPrice"`
	Category    string  `gorm:"column:category" json:"category"`
	InvoiceID   int64   `gorm:"column:invoiceId" json:"invoiceId"`
}

func (LineItem) TableName() string { return "LineItem" }

// InvoiceStats 是仪表盘顶部的汇总数字。
type InvoiceStats struct {
	TotalSpend          float64 `json:"totalSpend"`
	TotalInvoices       int64   `json:"totalInvoices"`
	AverageInvoiceValue float64 `json:"averageInvoiceValue"`
}

// InvoiceSummary 是发票列表中的一行。
type InvoiceSummary struct {
	ID            int64   `json:"id"`
	InvoiceNumber string  `json:"invoiceNumber"`
	IssueDate     string  `json:"issueDate"` // YYYY-MM-DD
	Status        string  `json:"status"`
	TotalAmount   float64 `json:"totalAmount"`
	VendorName    string  `json:"vendorName"`
}

// TrendPoint 是按月聚合的发票数量与金额。
type TrendPoint struct {
	Month string  `json:"month"` // Jan、Feb ...
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// VendorSpend 是单个供应商的累计金额。
type VendorSpend struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// CategorySpend 是单个费用类别的累计单价。
type CategorySpend struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// OutflowBucket 是未付发票按到期时间分段后的金额。
type OutflowBucket struct {
	Bucket string  `json:"bucket"`
	Total  float64 `json:"total"`
}
