package enums

// Currency is the ISO currency the platform settles in. Single-currency today.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
)

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}
