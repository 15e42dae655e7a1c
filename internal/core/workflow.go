package core

import "fmt"

// OrderStatus is the order-level workflow state.
type OrderStatus string

const (
	StatusDraft                   OrderStatus = "draft"
	StatusSubmitted               OrderStatus = "submitted"
	StatusSubmittedToManufacturer OrderStatus = "submitted_to_manufacturer"
	StatusManufacturerProcessed   OrderStatus = "manufacturer_processed"
	StatusSubmittedToClient       OrderStatus = "submitted_to_client"
	StatusClientReviewed          OrderStatus = "client_reviewed"
	StatusApprovedByClient        OrderStatus = "approved_by_client"
	StatusSubmittedForSample      OrderStatus = "submitted_for_sample"
	StatusSampleInProduction      OrderStatus = "sample_in_production"
	StatusSampleDelivered         OrderStatus = "sample_delivered"
	StatusSampleApproved          OrderStatus = "sample_approved"
	StatusInProduction            OrderStatus = "in_production"
	StatusPartiallyInProduction   OrderStatus = "partially_in_production"
	StatusCompleted               OrderStatus = "completed"
	StatusRevisionRequested       OrderStatus = "revision_requested"
	StatusRejected                OrderStatus = "rejected"
)

// ProductStatus mirrors the order workflow per line item.
type ProductStatus string

const (
	ProductDraft                 ProductStatus = "draft"
	ProductSubmitted             ProductStatus = "submitted"
	ProductManufacturerProcessed ProductStatus = "manufacturer_processed"
	ProductSubmittedToClient     ProductStatus = "submitted_to_client"
	ProductClientReviewed        ProductStatus = "client_reviewed"
	ProductApprovedByClient      ProductStatus = "approved_by_client"
	ProductSampleRequested       ProductStatus = "sample_requested"
	ProductSampleInProduction    ProductStatus = "sample_in_production"
	ProductSampleDelivered       ProductStatus = "sample_delivered"
	ProductSampleApproved        ProductStatus = "sample_approved"
	ProductApprovedForProduction ProductStatus = "approved_for_production"
	ProductInProduction          ProductStatus = "in_production"
	ProductCompleted             ProductStatus = "completed"
	ProductRevisionRequested     ProductStatus = "revision_requested"
	ProductRejected              ProductStatus = "rejected"
)

// orderTransitions is the forward edge set of the order state machine.
// revision_requested and rejected are reachable from any non-terminal state
// and are handled in CanTransitionOrder rather than listed per state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusDraft:                   {StatusSubmitted, StatusSubmittedToManufacturer},
	StatusSubmitted:               {StatusSubmittedToManufacturer, StatusSubmittedForSample},
	StatusSubmittedToManufacturer: {StatusManufacturerProcessed},
	StatusManufacturerProcessed:   {StatusSubmittedToClient, StatusInProduction},
	StatusSubmittedToClient:       {StatusClientReviewed},
	StatusClientReviewed:          {StatusApprovedByClient},
	StatusApprovedByClient:        {StatusInProduction},
	StatusSubmittedForSample:      {StatusSampleInProduction},
	StatusSampleInProduction:      {StatusSampleDelivered},
	StatusSampleDelivered:         {StatusSampleApproved},
	StatusSampleApproved:          {StatusInProduction},
	StatusInProduction:            {StatusPartiallyInProduction, StatusCompleted},
	StatusPartiallyInProduction:   {StatusCompleted},
	StatusRevisionRequested:       {StatusSubmitted, StatusSubmittedToManufacturer},
}

var productTransitions = map[ProductStatus][]ProductStatus{
	ProductDraft:                 {ProductSubmitted},
	ProductSubmitted:             {ProductManufacturerProcessed, ProductSampleRequested},
	ProductManufacturerProcessed: {ProductSubmittedToClient, ProductApprovedForProduction},
	ProductSubmittedToClient:     {ProductClientReviewed},
	ProductClientReviewed:        {ProductApprovedByClient},
	ProductApprovedByClient:      {ProductApprovedForProduction},
	ProductSampleRequested:       {ProductSampleInProduction},
	ProductSampleInProduction:    {ProductSampleDelivered},
	ProductSampleDelivered:       {ProductSampleApproved},
	ProductSampleApproved:        {ProductApprovedForProduction},
	ProductApprovedForProduction: {ProductInProduction},
	ProductInProduction:          {ProductCompleted},
	ProductRevisionRequested:     {ProductSubmitted},
}

// Terminal reports whether no further order transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

func (s ProductStatus) Terminal() bool {
	return s == ProductCompleted || s == ProductRejected
}

// CanTransitionOrder reports whether from → to is a legal order transition.
func CanTransitionOrder(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusRevisionRequested || to == StatusRejected {
		return true
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionProduct reports whether from → to is a legal product transition.
func CanTransitionProduct(from, to ProductStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == ProductRevisionRequested || to == ProductRejected {
		return true
	}
	for _, next := range productTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckProductTransition enforces the full product transition rule set:
// the move must be legal, the actor must currently hold routing, and a lock
// held by another party blocks everyone but the holder. Admin routing
// authority does not bypass either check. Violations are PermissionError;
// illegal edges are ValidationError.
func CheckProductTransition(p *OrderProduct, actor Actor, to ProductStatus) error {
	if !CanTransitionProduct(p.Status, to) {
		return &ValidationError{Field: "product_status",
			Msg: fmt.Sprintf("cannot transition from %s to %s", p.Status, to)}
	}
	if err := checkHolds(p, actor); err != nil {
		return err
	}
	return nil
}

// checkHolds verifies the actor currently holds the product via routing and
// is not blocked by someone else's lock.
func checkHolds(p *OrderProduct, actor Actor) error {
	if !holdsRouting(p.RoutedTo, actor.Role) {
		return &PermissionError{Msg: fmt.Sprintf(
			"product %d is routed to %s; %s may not act on it", p.ID, p.RoutedTo, actor.Role)}
	}
	if p.LockedBy != nil && *p.LockedBy != actorRoutingRole(actor.Role) {
		return &PermissionError{Msg: fmt.Sprintf(
			"product %d is locked by %s", p.ID, *p.LockedBy)}
	}
	return nil
}

// CheckProductEdit guards edits to the fields a manufacturer actively
// completes (pricing, ETA, shipping choice). A lock held by the manufacturer
// blocks even the admin, which routing authority would otherwise permit.
func CheckProductEdit(p *OrderProduct, actor Actor) error {
	if p.LockedBy != nil && *p.LockedBy != actorRoutingRole(actor.Role) {
		return &PermissionError{Msg: fmt.Sprintf(
			"product %d is locked by %s; release the lock before editing", p.ID, *p.LockedBy)}
	}
	if !holdsRouting(p.RoutedTo, actor.Role) {
		return &PermissionError{Msg: fmt.Sprintf(
			"product %d is routed to %s; %s may not edit it", p.ID, p.RoutedTo, actor.Role)}
	}
	return nil
}

// holdsRouting maps actor roles onto routing slots. super_admin acts in the
// admin slot; elevation matters only for destructive guards, not routing.
func holdsRouting(routedTo Role, role Role) bool {
	return actorRoutingRole(role) == routedTo
}

func actorRoutingRole(role Role) Role {
	if role == RoleSuperAdmin {
		return RoleAdmin
	}
	return role
}

// Invoiceable is the billing eligibility predicate. It is evaluated fresh on
// every invoice-listing read, never cached. Soft-deleted products are never
// invoiceable.
func Invoiceable(p *OrderProduct) bool {
	if p.Deleted() {
		return false
	}
	switch p.Status {
	case ProductApprovedForProduction, ProductInProduction, ProductCompleted:
		return true
	}
	return p.RoutedTo == RoleAdmin &&
		(p.UnitPrice.IsPositive() || p.SampleFee.IsPositive())
}
