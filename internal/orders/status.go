package orders

import "github.com/ariefcatur/go-hyperlocal-orders/internal/actor"

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// validNext is keyed by the role the actor holds on the order. Admins going
// through the normal path use the seller row.
var validNext = map[actor.Role]map[Status]map[Status]bool{
	actor.RoleCustomer: {
		StatusPlaced: {StatusCancelled: true},
	},
	actor.RoleSeller: {
		StatusPlaced: {StatusReady: true, StatusCancelled: true},
		StatusReady:  {StatusCompleted: true, StatusCancelled: true},
	},
}

func CanTransition(role actor.Role, from, to Status) bool {
	if role == actor.RoleAdmin {
		role = actor.RoleSeller
	}
	return validNext[role][from][to]
}

// Filter groups statuses the way order lists are browsed.
type Filter string

const (
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterCancelled Filter = "cancelled"
	FilterAll       Filter = "all"
)

// Statuses returns nil for all. An empty filter browses active orders.
func (f Filter) Statuses() ([]Status, bool) {
	switch f {
	case FilterActive, "":
		return []Status{StatusPlaced, StatusReady}, true
	case FilterCompleted:
		return []Status{StatusCompleted}, true
	case FilterCancelled:
		return []Status{StatusCancelled}, true
	case FilterAll:
		return nil, true
	}
	return nil, false
}
