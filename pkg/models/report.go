package models

type StatusSummary struct {
	Status        OrderStatus `json:"order_status" bson:"_id"`
	Count         int         `json:"count" bson:"count"`
	Revenue       float64     `json:"revenue" bson:"revenue"`
	AvgOrderValue float64     `json:"avg_order_value" bson:"avg_order_value"`
}

// SalesReport is the admin view of orders per status. Cancelled, returned
// and refunded orders are excluded from NetRevenue.
type SalesReport struct {
	Statuses    []StatusSummary `json:"statuses"`
	TotalOrders int             `json:"total_orders"`
	NetRevenue  float64         `json:"net_revenue"`
}

func NewSalesReport(statuses []StatusSummary) *SalesReport {
	if statuses == nil {
		statuses = []StatusSummary{}
	}
	report := &SalesReport{Statuses: statuses}
	for _, s := range statuses {
		report.TotalOrders += s.Count
		switch s.Status {
		case OrderCancelled, OrderReturned, OrderRefunded:
		default:
			report.NetRevenue += s.Revenue
		}
	}
	report.NetRevenue = RoundMoney(report.NetRevenue)
	return report
}
