package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sql-smart-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceTotals 是发票表的数量与金额合计。
type InvoiceTotals struct {
	Count int64
	Total float64
}

// VendorTotal 是按 vendorId 聚合的金额。
type VendorTotal struct {
	VendorID int64
	Total    float64
}

// AnalyticsRepository 定义了发票仪表盘所需的只读查询。
type AnalyticsRepository interface {
	InvoiceTotals(ctx context.Context) (InvoiceTotals, error)
	ListInvoices(ctx context.Context, search string) ([]model.Invoice, error)
	InvoicesIssuedSince(ctx context.Context, since time.Time) ([]model.Invoice, error)
	UnpaidInvoices(ctx context.Context) ([]model.Invoice, error)
	TopVendorTotals(ctx context.Context, limit int) ([]VendorTotal, error)
	VendorsByID(ctx context.Context, ids []int64) ([]model.Vendor, error)
	CategorySpend(ctx context.Context) ([]model.CategorySpend, error)
}

type gormAnalyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository 创建一个新的 AnalyticsRepository 实例。
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &gormAnalyticsRepository{db: db}
}

func column(table, name string) clause.Column {
	return clause.Column{Table: table, Name: name}
}

func (r *gormAnalyticsRepository) InvoiceTotals(ctx context.Context) (InvoiceTotals, error) {
	var totals InvoiceTotals
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Select("COUNT(*) AS count, COALESCE(SUM(?), 0) AS total", column("", "totalAmount")).
		Scan(&totals).Error
	if err != nil {
		return InvoiceTotals{}, fmt.Errorf("failed to aggregate invoices: %w", err)
	}
	return totals, nil
}

// ListInvoices 按供应商名称或发票号做不区分大小写的包含匹配，search 为空时返回全部，按开票日期倒序。
func (r *gormAnalyticsRepository) ListInvoices(ctx context.Context, search string) ([]model.Invoice, error) {
	tx := r.db.WithContext(ctx).Joins("Vendor")
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		tx = tx.Where("LOWER(?) LIKE ? OR LOWER(?) LIKE ?",
			column("Vendor", "name"), pattern,
			column("Invoice", "invoiceNumber"), pattern)
	}
	var invoices []model.Invoice
	err := tx.Order(clause.OrderByColumn{Column: column("Invoice", "issueDate"), Desc: true}).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (r *gormAnalyticsRepository) InvoicesIssuedSince(ctx context.Context, since time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).
		Where(clause.Gte{Column: column("", "issueDate"), Value: since}).
		Order(clause.OrderByColumn{Column: column("", "issueDate")}).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices since %s: %w", since.Format(time.DateOnly), err)
	}
	return invoices, nil
}

// UnpaidInvoices 返回状态为 PENDING 或 OVERDUE 的发票。
func (r *gormAnalyticsRepository) UnpaidInvoices(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).
		Where(clause.IN{Column: column("", "status"), Values: []any{model.InvoiceStatusPending, model.InvoiceStatusOverdue}}).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load unpaid invoices: %w", err)
	}
	return invoices, nil
}

// TopVendorTotals 按 vendorId 汇总金额，取金额最高的 limit 个。
func (r *gormAnalyticsRepository) TopVendorTotals(ctx context.Context, limit int) ([]VendorTotal, error) {
	var totals []VendorTotal
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Select("? AS vendor_id, COALESCE(SUM(?), 0) AS total", column("", "vendorId"), column("", "totalAmount")).
		Group("vendorId").
		Order(clause.OrderByColumn{Column: column("", "total"), Desc: true}).
		Limit(limit).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate vendor totals: %w", err)
	}
	return totals, nil
}

func (r *gormAnalyticsRepository) VendorsByID(ctx context.Context, ids []int64) ([]model.Vendor, error) {
	if len(ids) == 0 {
		return []model.Vendor{}, nil
	}
	var vendors []model.Vendor
	if err := r.db.WithContext(ctx).Find(&vendors, ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load vendors: %w", err)
	}
	return vendors, nil
}

// CategorySpend 按类别汇总 LineItem 的单价，金额降序。
func (r *gormAnalyticsRepository) CategorySpend(ctx context.Context) ([]model.CategorySpend, error) {
	var spend []model.CategorySpend
	err := r.db.WithContext(ctx).Model(&model.LineItem{}).
		Select("? AS name, COALESCE(SUM(?), 0) AS value", column("", "category"), column("", "unitPrice")).
		Group("category").
		Order(clause.OrderByColumn{Column: column("", "value"), Desc: true}).
		Scan(&spend).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category spend: %w", err)
	}
	return spend, nil
}
