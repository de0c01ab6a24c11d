package enums

import "fmt"

// StockChangeType labels why a pricing unit's stock moved.
type StockChangeType string

const (
	StockChangeTypeOrderPlaced    StockChangeType = "order_placed"
	StockChangeTypeOrderCancelled StockChangeType = "order_cancelled"
	StockChangeTypeRestock        StockChangeType = "restock"
	StockChangeTypeManual         StockChangeType = "manual"
)

var validStockChangeTypes = []StockChangeType{
	StockChangeTypeOrderPlaced,
	StockChangeTypeOrderCancelled,
	StockChangeTypeRestock,
	StockChangeTypeManual,
}

// String implements fmt.Stringer.
func (s StockChangeType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockChangeType.
func (s StockChangeType) IsValid() bool {
	for _, candidate := range validStockChangeTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockChangeType converts raw input into a StockChangeType.
func ParseStockChangeType(value string) (StockChangeType, error) {
	for _, candidate := range validStockChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock change type %q", value)
}
