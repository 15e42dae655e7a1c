package core

import (
	"github.com/shopspring/decimal"
)

// ReconcileOrder computes the invoicing picture for one order from its
// products and invoices. Pure: all database reads happen before the call.
//
//   - TotalValue sums ClientLineTotal over currently invoiceable,
//     non-soft-deleted products. The Invoiceable predicate runs fresh here on
//     every call; nothing is cached.
//   - InvoicedAmount sums amounts of invoices with status sent. Draft invoices
//     have not gone out and voided invoices have been reversed, so neither
//     counts.
//   - ReadyToInvoice = max(0, TotalValue − InvoicedAmount). Never negative.
//
// EligibleIDs lists the invoiceable products not yet claimed by a non-voided
// invoice; UninvoicedValue is their combined client total.
func ReconcileOrder(orderID int, products []OrderProduct, invoices []Invoice, om *OrderMargin, defaults MarginDefaults) ReconcileSummary {
	sum := ReconcileSummary{
		OrderID:         orderID,
		TotalValue:      decimal.Zero,
		InvoicedAmount:  decimal.Zero,
		UninvoicedValue: decimal.Zero,
	}

	for i := range products {
		p := &products[i]
		if !Invoiceable(p) {
			continue
		}
		lineTotal := ClientLineTotal(p, om, defaults)
		sum.TotalValue = sum.TotalValue.Add(lineTotal)
		if !p.Invoiced {
			sum.EligibleIDs = append(sum.EligibleIDs, p.ID)
			sum.UninvoicedValue = sum.UninvoicedValue.Add(lineTotal)
		}
	}

	for i := range invoices {
		if invoices[i].Status == InvoiceSent {
			sum.InvoicedAmount = sum.InvoicedAmount.Add(invoices[i].Amount)
		}
	}

	ready := sum.TotalValue.Sub(sum.InvoicedAmount)
	if ready.IsNegative() {
		ready = decimal.Zero
	}
	sum.ReadyToInvoice = ready
	return sum
}
