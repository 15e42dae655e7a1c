package app

import (
	"makerdesk/internal/core"
	"makerdesk/internal/notify"
)

// SendInvoiceResult reports the outcome of an invoice delivery.
type SendInvoiceResult struct {
	Success   bool              `json:"success"`
	EmailID   string            `json:"email_id,omitempty"`
	SMSResult *notify.SMSResult `json:"sms_result,omitempty"`
	Message   string            `json:"message"`
	Details   string            `json:"details,omitempty"`
	Invoice   *core.Invoice     `json:"invoice,omitempty"`
}

// InvoiceView decorates an invoice with its derived overdue flag, which is
// recomputed on every read and never stored.
type InvoiceView struct {
	core.Invoice
	Overdue bool `json:"overdue"`
}
