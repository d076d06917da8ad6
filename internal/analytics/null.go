package analytics

import (
	"math"
	"strconv"
)

// Null is a float64 cell that may be undefined. Non-finite values (from a
// division by a zero balance) are kept as-is but serialize as null.
type Null struct {
	Float64 float64
	Valid   bool
}

// Some returns a defined cell.
func Some(v float64) Null { return Null{Float64: v, Valid: true} }

// None is the undefined cell.
var None = Null{}

func (n Null) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Float64) || math.IsInf(n.Float64, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Float64, 'f', -1, 64), nil
}

func (n *Null) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = None
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// String renders the cell for tabular export. Undefined and non-finite
// cells are empty, matching their JSON null.
func (n Null) String() string {
	if !n.Valid || math.IsNaN(n.Float64) || math.IsInf(n.Float64, 0) {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}
