package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// InvoiceStatus is derived from the relation between paid and total amounts
type InvoiceStatus int

const (
	InvoiceStatusUnpaid        InvoiceStatus = 0
	InvoiceStatusPartiallyPaid InvoiceStatus = 1
	InvoiceStatusPaid          InvoiceStatus = 2
)

func (s InvoiceStatus) String() string {
	return [...]string{"Unpaid", "Partially Paid", "Paid"}[s]
}

// DeriveInvoiceStatus computes the status from paid and total amounts in cents
func DeriveInvoiceStatus(paid, total int64) InvoiceStatus {
	switch {
	case paid <= 0:
		return InvoiceStatusUnpaid
	case paid < total:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusPaid
	}
}

func (s InvoiceStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *InvoiceStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = InvoiceStatus(i)
		return nil
	}
	switch str {
	case "Unpaid":
		*s = InvoiceStatusUnpaid
	case "Partially Paid":
		*s = InvoiceStatusPartiallyPaid
	case "Paid":
		*s = InvoiceStatusPaid
	}
	return nil
}

func (s InvoiceStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *InvoiceStatus) Scan(value interface{}) error {
	if value == nil {
		*s = InvoiceStatusUnpaid
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = InvoiceStatus(v)
	case int:
		*s = InvoiceStatus(v)
	}
	return nil
}
