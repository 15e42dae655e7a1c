package app

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"makerdesk/internal/core"
)

func TestInvoiceEmailBody_EscapesCallerInput(t *testing.T) {
	inv := &core.Invoice{
		InvoiceNumber: "INV-000001",
		Amount:        decimal.RequireFromString("1800.00"),
	}

	body := invoiceEmailBody(inv,
		`https://pay.example.com/x?a=1&b=2"><script>`,
		`<script>alert(1)</script> & more`)

	if strings.Contains(body, "<script>") {
		t.Errorf("body contains unescaped markup: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt; &amp; more") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.Contains(body, `href="https://pay.example.com/x?a=1&amp;b=2&#34;&gt;&lt;script&gt;"`) {
		t.Errorf("payment URL not escaped: %s", body)
	}
}

func TestInvoiceEmailBody_PlainContentUntouched(t *testing.T) {
	inv := &core.Invoice{
		InvoiceNumber: "INV-000002",
		Amount:        decimal.RequireFromString("42.50"),
	}

	body := invoiceEmailBody(inv, "https://pay.example.com/abc", "Thanks for your order")

	if !strings.Contains(body, "<strong>INV-000002</strong>") {
		t.Errorf("invoice number missing: %s", body)
	}
	if !strings.Contains(body, "Thanks for your order") {
		t.Errorf("message mangled: %s", body)
	}
	if !strings.Contains(body, `href="https://pay.example.com/abc"`) {
		t.Errorf("payment URL mangled: %s", body)
	}
}
