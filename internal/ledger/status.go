package ledger

// Status codes are part of the external contract: callers see the numeric
// values, so the order of the constants must never change.
type Status int

const (
	StatusCreated   Status = iota // 0
	StatusPaid                    // 1
	StatusShipped                 // 2
	StatusDelivered               // 3
	StatusCanceled                // 4
	StatusDisputed                // 5
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusPaid:
		return "PAID"
	case StatusShipped:
		return "SHIPPED"
	case StatusDelivered:
		return "DELIVERED"
	case StatusCanceled:
		return "CANCELED"
	case StatusDisputed:
		return "DISPUTED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusPaid: true},
	StatusPaid:      {StatusShipped: true, StatusCanceled: true, StatusDisputed: true},
	StatusShipped:   {StatusDelivered: true, StatusDisputed: true},
	StatusDisputed:  {StatusDelivered: true, StatusCanceled: true},
	StatusDelivered: {},
	StatusCanceled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
