package models

import "github.com/shopspring/decimal"

// Pricing is the platform's tax and fee schedule applied to every cart.
type Pricing struct {
	TaxRate     float64 `json:"tax_rate"`
	PlatformFee float64 `json:"platform_fee"`
}

// DefaultPricing is 18% GST plus a flat platform fee of 10.
var DefaultPricing = Pricing{TaxRate: 0.18, PlatformFee: 10}

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// ToMinorUnits converts a major-unit amount (rupees) into the smallest unit (paise).
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// lineSubtotal is price × quantity rounded to two places.
func lineSubtotal(price float64, quantity int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
}

type totals struct {
	subtotal float64
	tax      float64
	fee      float64
	total    float64
}

func (p Pricing) compute(subtotals []float64) totals {
	sum := decimal.Zero
	for _, s := range subtotals {
		sum = sum.Add(decimal.NewFromFloat(s))
	}
	tax := sum.Mul(decimal.NewFromFloat(p.TaxRate)).Round(2)
	fee := decimal.Zero
	if len(subtotals) > 0 {
		fee = decimal.NewFromFloat(p.PlatformFee)
	}
	return totals{
		subtotal: sum.Round(2).InexactFloat64(),
		tax:      tax.InexactFloat64(),
		fee:      fee.InexactFloat64(),
		total:    sum.Add(tax).Add(fee).Round(2).InexactFloat64(),
	}
}
