package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveInvoiceStatus(t *testing.T) {
	tests := []struct {
		name  string
		paid  int64
		total int64
		want  InvoiceStatus
	}{
		{"nothing paid", 0, 10000, InvoiceStatusUnpaid},
		{"partial", 4000, 10000, InvoiceStatusPartiallyPaid},
		{"settled", 10000, 10000, InvoiceStatusPaid},
		{"zero total", 0, 0, InvoiceStatusUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveInvoiceStatus(tt.paid, tt.total))
		})
	}
}
