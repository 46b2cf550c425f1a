package stock

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

var digitRun = regexp.MustCompile(`\d+`)

// ParseQuantity extracts the first run of decimal digits from free text such
// as "5 boxes". Text without digits parses as 0.
func ParseQuantity(text string) int {
	match := digitRun.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// DefaultReorderLevel is the reorder level given to consumables created from a
// purchase receipt: 20% of the received quantity, rounded up.
func DefaultReorderLevel(quantity int) int {
	return int(math.Ceil(float64(quantity) * 0.2))
}

// Quantity is a purchase quantity as entered: a number or free text.
// It decodes from either a JSON number or a JSON string.
type Quantity string

// UnmarshalJSON accepts numbers and strings.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*q = Quantity(n.String())
	return nil
}

// Units returns the numeric part of the quantity.
func (q Quantity) Units() int {
	return ParseQuantity(string(q))
}

// QuantityOf formats a whole number as a Quantity.
func QuantityOf(n int) Quantity {
	return Quantity(strconv.Itoa(n))
}
