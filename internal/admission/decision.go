package admission

// Outcome is the tag of a Decision.
type Outcome int

const (
	Approved Outcome = iota
	NotFound
	Unauthorized
	Conflict
	InvalidArgument
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case InvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Reason qualifies Conflict and InvalidArgument decisions.
type Reason string

const (
	ReasonUserAlreadyBooked Reason = "userAlreadyBooked"
	ReasonSlotTaken         Reason = "slotTaken"
	ReasonLeadTimeTooShort  Reason = "leadTimeTooShort"
)

// Decision is the result of an admission evaluation. Entity is set for
// NotFound, Reason for Conflict and InvalidArgument. Message is user facing
// and always names the offending identifier.
type Decision struct {
	Outcome Outcome
	Entity  string
	Reason  Reason
	Message string
}

// Approved reports whether the requested write may proceed.
func (d Decision) Approved() bool {
	return d.Outcome == Approved
}

func approve() Decision {
	return Decision{Outcome: Approved}
}

func notFound(entity, message string) Decision {
	return Decision{Outcome: NotFound, Entity: entity, Message: message}
}

func unauthorized(message string) Decision {
	return Decision{Outcome: Unauthorized, Message: message}
}

func conflict(reason Reason, message string) Decision {
	return Decision{Outcome: Conflict, Reason: reason, Message: message}
}

func invalidArgument(reason Reason, message string) Decision {
	return Decision{Outcome: InvalidArgument, Reason: reason, Message: message}
}
