package market

import "fmt"

// Side is the direction of an order or position.
type Side int

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	return -s
}
