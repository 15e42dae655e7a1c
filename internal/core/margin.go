package core

import (
	"github.com/shopspring/decimal"
)

// MarginDefaults is the single global configuration record feeding the margin
// resolver. Percentages are whole numbers (80 means 80%).
type MarginDefaults struct {
	ProductMarginPercent   decimal.Decimal
	ShippingMarginPercent  decimal.Decimal
	SampleMarginPercent    decimal.Decimal
	ClothingProductFee     decimal.Decimal // flat fee per unit for the clothing category
	ClothingSampleFee      decimal.Decimal // persisted and editable but not consumed; see ResolveClientSampleFee
	AccessoryMarginPercent decimal.Decimal
}

var (
	marginPercentMax = decimal.NewFromInt(500)
	oneHundred       = decimal.NewFromInt(100)
)

// Round2 is the single rounding point for all monetary quantities:
// two decimal places, half away from zero. It is applied after each
// multiplication, not only at final display, so stored totals always equal
// the sum of their displayed parts.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidateMarginPercent enforces the closed range [0, 500] on a margin
// percentage at write time. Out-of-range values are a ValidationError,
// never silently clamped.
func ValidateMarginPercent(field string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(marginPercentMax) {
		return &ValidationError{Field: field,
			Msg: "margin percentage must be between 0 and 500"}
	}
	return nil
}

// applyMargin computes cost * (1 + pct/100), rounded.
func applyMargin(cost, pct decimal.Decimal) decimal.Decimal {
	return Round2(cost.Mul(oneHundred.Add(pct)).Div(oneHundred))
}

// ResolveClientUnitPrice derives the client-facing unit price from the
// manufacturer cost. Precedence, first match wins:
//
//  1. a persisted client unit price on the product (finalized override)
//  2. clothing flat-fee mode: manufacturer price + flat fee per unit
//  3. product-level percentage override
//  4. order-level percentage override
//  5. global default percentage (accessory category has its own default)
func ResolveClientUnitPrice(p *OrderProduct, om *OrderMargin, defaults MarginDefaults) decimal.Decimal {
	if p.ClientUnitPrice != nil {
		return Round2(*p.ClientUnitPrice)
	}
	if p.Category == CategoryClothing {
		// Flat-fee mode is mutually exclusive with percentage mode: the fee
		// is additive per unit and no margin percentage applies on top.
		return Round2(p.UnitPrice.Add(defaults.ClothingProductFee))
	}
	return applyMargin(p.UnitPrice, resolveProductMarginPercent(p, om, defaults))
}

func resolveProductMarginPercent(p *OrderProduct, om *OrderMargin, defaults MarginDefaults) decimal.Decimal {
	if p.MarginPercent != nil {
		return *p.MarginPercent
	}
	if om != nil {
		return om.ProductMarginPercent
	}
	if p.Category == CategoryAccessory {
		return defaults.AccessoryMarginPercent
	}
	return defaults.ProductMarginPercent
}

// ResolveClientShippingPrice derives the client shipping charge for the
// selected shipping method only; the unselected method's cost is never
// charged. Same precedence chain as unit price: persisted client shipping
// price, then product/order/global shipping margin percentages.
func ResolveClientShippingPrice(p *OrderProduct, om *OrderMargin, defaults MarginDefaults) decimal.Decimal {
	cost := shippingCost(p)
	if cost.IsZero() && p.SelectedShipping == ShippingNone {
		return decimal.Zero
	}
	if p.ClientShippingPrice != nil {
		return Round2(*p.ClientShippingPrice)
	}
	pct := defaults.ShippingMarginPercent
	if om != nil {
		pct = om.ShippingMarginPercent
	}
	if p.ShippingMarginPercent != nil {
		pct = *p.ShippingMarginPercent
	}
	return applyMargin(cost, pct)
}

func shippingCost(p *OrderProduct) decimal.Decimal {
	switch p.SelectedShipping {
	case ShippingAir:
		return p.AirShippingCost
	case ShippingBoat:
		return p.BoatShippingCost
	}
	return decimal.Zero
}

// ResolveClientSampleFee derives the client sample fee. Sample fees are
// percentage-margin only: the clothing_sample_fee flat setting is recognized
// in configuration but deliberately inert here — no pricing path consumes it
// until product owners define the intended formula. Do not wire it up.
func ResolveClientSampleFee(p *OrderProduct, defaults MarginDefaults) decimal.Decimal {
	if p.ClientSampleFee != nil {
		return Round2(*p.ClientSampleFee)
	}
	if p.SampleFee.IsZero() {
		return decimal.Zero
	}
	return applyMargin(p.SampleFee, defaults.SampleMarginPercent)
}

// ClientLineTotal is the full client-facing amount for one order product:
// unit price × total quantity, plus sample fee, plus selected shipping.
// Each term is rounded before summing.
func ClientLineTotal(p *OrderProduct, om *OrderMargin, defaults MarginDefaults) decimal.Decimal {
	qty := decimal.NewFromInt(p.TotalQuantity())
	unit := ResolveClientUnitPrice(p, om, defaults)
	total := Round2(unit.Mul(qty))
	total = total.Add(ResolveClientSampleFee(p, defaults))
	total = total.Add(ResolveClientShippingPrice(p, om, defaults))
	return total
}
