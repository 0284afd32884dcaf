package message

// Status is the delivery lifecycle stage of a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

func (s Status) Valid() bool {
	return s.rank() > 0
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// Repeated or backward transitions are not applied.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.Valid() && next.rank() > s.rank()
}

// Predecessors returns every status that may legally advance to next.
func Predecessors(next Status) []Status {
	var out []Status
	for _, s := range []Status{StatusSent, StatusDelivered, StatusRead} {
		if s.CanAdvanceTo(next) {
			out = append(out, s)
		}
	}
	return out
}
