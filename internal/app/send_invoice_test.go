package app_test

import (
	"context"
	"errors"
	"testing"

	"makerdesk/internal/app"
	"makerdesk/internal/core"
)

// Delivery requests are validated before any collaborator is touched, so a
// service with nothing wired behind it is enough here.
func TestSendInvoice_RequestValidation(t *testing.T) {
	svc := app.NewAppService(nil, nil, nil, nil, nil, nil, nil)
	actor := core.Actor{ID: 1, Name: "Admin", Role: core.RoleAdmin}
	ctx := context.Background()

	tests := []struct {
		name string
		req  app.SendInvoiceRequest
	}{
		{
			name: "unknown method",
			req:  app.SendInvoiceRequest{InvoiceID: 1, Method: "carrier_pigeon", To: []string{"a@b.com"}},
		},
		{
			name: "email without recipients",
			req:  app.SendInvoiceRequest{InvoiceID: 1, Method: app.DeliverEmail},
		},
		{
			name: "sms without phone",
			req:  app.SendInvoiceRequest{InvoiceID: 1, Method: app.DeliverSMS},
		},
		{
			name: "both without phone",
			req:  app.SendInvoiceRequest{InvoiceID: 1, Method: app.DeliverBoth, To: []string{"a@b.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendInvoice(ctx, actor, tt.req)
			var val *core.ValidationError
			if !errors.As(err, &val) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}
