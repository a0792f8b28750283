package service

import (
	"context"
	"math"
	"sort"
	"time"

	"sql-smart-go/internal/model"
	"sql-smart-go/internal/repository"
)

const (
	topVendorLimit = 10
	trendMonths    = 12
	unknownVendor  = "Unknown"
)

// 现金流出分段，顺序即输出顺序。
var outflowBuckets = []struct {
	label string
	upTo  time.Duration // 距到期的最长时间，0 表示无上限
}{
	{"0 - 7 days", 7 * 24 * time.Hour},
	{"8 - 30 days", 30 * 24 * time.Hour},
	{"31 - 60 days", 60 * 24 * time.Hour},
	{"60+ days", 0},
}

// OverdueBucket 是到期日已过的未付发票所在的分段。
const OverdueBucket = "Overdue"

// AnalyticsService 定义了发票仪表盘的业务逻辑。
type AnalyticsService interface {
	Stats(ctx context.Context) (*model.InvoiceStats, error)
	Invoices(ctx context.Context, search string) ([]model.InvoiceSummary, error)
	InvoiceTrends(ctx context.Context) ([]model.TrendPoint, error)
	TopVendors(ctx context.Context) ([]model.VendorSpend, error)
	CategorySpend(ctx context.Context) ([]model.CategorySpend, error)
	CashOutflow(ctx context.Context) ([]model.OutflowBucket, error)
}

type analyticsService struct {
	repo repository.AnalyticsRepository
	now  func() time.Time
}

// NewAnalyticsService 创建一个新的 AnalyticsService。
func NewAnalyticsService(repo repository.AnalyticsRepository) AnalyticsService {
	return &analyticsService{repo: repo, now: time.Now}
}

func (s *analyticsService) Stats(ctx context.Context) (*model.InvoiceStats, error) {
	totals, err := s.repo.InvoiceTotals(ctx)
	if err != nil {
		return nil, err
	}
	stats := &model.InvoiceStats{TotalSpend: totals.Total, TotalInvoices: totals.Count}
	if totals.Count > 0 {
		stats.AverageInvoiceValue = totals.Total / float64(totals.Count)
	}
	return stats, nil
}

func (s *analyticsService) Invoices(ctx context.Context, search string) ([]model.InvoiceSummary, error) {
	invoices, err := s.repo.ListInvoices(ctx, search)
	if err != nil {
		return nil, err
	}
	out := make([]model.InvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, model.InvoiceSummary{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			IssueDate:     inv.IssueDate.UTC().Format(time.DateOnly),
			Status:        inv.Status,
			TotalAmount:   inv.TotalAmount,
			VendorName:    inv.Vendor.Name,
		})
	}
	return out, nil
}

// InvoiceTrends 按开票月份（UTC）汇总最近 12 个月的发票，月份升序。
func (s *analyticsService) InvoiceTrends(ctx context.Context) ([]model.TrendPoint, error) {
	since := s.now().UTC().AddDate(0, -trendMonths, 0)
	invoices, err := s.repo.InvoicesIssuedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	type monthly struct {
		first time.Time
		count int
		total float64
	}
	byMonth := make(map[string]*monthly)
	for _, inv := range invoices {
		issued := inv.IssueDate.UTC()
		key := issued.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &monthly{first: time.Date(issued.Year(), issued.Month(), 1, 0, 0, 0, 0, time.UTC)}
			byMonth[key] = m
		}
		m.count++
		m.total += inv.TotalAmount
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.TrendPoint, 0, len(keys))
	for _, k := range keys {
		m := byMonth[k]
		out = append(out, model.TrendPoint{Month: m.first.Format("Jan"), Count: m.count, Total: roundCents(m.total)})
	}
	return out, nil
}

// TopVendors 返回金额最高的 10 个供应商，按金额升序排列。
func (s *analyticsService) TopVendors(ctx context.Context) ([]model.VendorSpend, error) {
	totals, err := s.repo.TopVendorTotals(ctx, topVendorLimit)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.VendorID)
	}
	vendors, err := s.repo.VendorsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.Name
	}

	out := make([]model.VendorSpend, 0, len(totals))
	for _, t := range totals {
		name, ok := names[t.VendorID]
		if !ok {
			name = unknownVendor
		}
		out = append(out, model.VendorSpend{Name: name, Total: t.Total})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total < out[j].Total })
	return out, nil
}

func (s *analyticsService) CategorySpend(ctx context.Context) ([]model.CategorySpend, error) {
	spend, err := s.repo.CategorySpend(ctx)
	if err != nil {
		return nil, err
	}
	if spend == nil {
		spend = []model.CategorySpend{}
	}
	return spend, nil
}

// CashOutflow 将未付发票按到期日分段汇总。Overdue 在前，其余按到期远近排列，没有发票的分段不输出。
func (s *analyticsService) CashOutflow(ctx context.Context) ([]model.OutflowBucket, error) {
	invoices, err := s.repo.UnpaidInvoices(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	totals := make(map[string]float64)
	for _, inv := range invoices {
		label := outflowBucket(inv.DueDate.Sub(now))
		totals[label] += inv.TotalAmount
	}

	order := []string{OverdueBucket}
	for _, b := range outflowBuckets {
		order = append(order, b.label)
	}
	out := make([]model.OutflowBucket, 0, len(totals))
	for _, label := range order {
		if total, ok := totals[label]; ok {
			out = append(out, model.OutflowBucket{Bucket: label, Total: roundCents(total)})
		}
	}
	return out, nil
}

// outflowBucket 根据距到期的时间选择分段，分段首尾相接。
func outflowBucket(untilDue time.Duration) string {
	if untilDue < 0 {
		return OverdueBucket
	}
	for _, b := range outflowBuckets {
		if b.upTo == 0 || untilDue <= b.upTo {
			return b.label
		}
	}
	return OverdueBucket
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
