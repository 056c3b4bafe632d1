package enum

// PaymentMethod identifies how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "cash"
	PaymentMethodMobile    PaymentMethod = "mobile_money"
	PaymentMethodInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMobile, PaymentMethodInsurance:
		return true
	}
	return false
}
