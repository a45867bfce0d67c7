package orders

import "github.com/ariefcatur/go-marketplace-orders/internal/auth"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

var (
	terminalStatuses       = []Status{StatusCompleted, StatusCancelled}
	openStatuses           = []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady}
	customerCancelStatuses = []Status{StatusPending, StatusConfirmed}
)

func (s Status) Valid() bool { return in(s, AllStatuses) }

func (s Status) Terminal() bool { return in(s, terminalStatuses) }

func in(s Status, set []Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

var validNext = map[auth.Role]map[Status]map[Status]bool{
	auth.RoleSeller: {
		StatusPending:   {StatusConfirmed: true, StatusPreparing: true, StatusCancelled: true},
		StatusConfirmed: {StatusPreparing: true, StatusReady: true, StatusCancelled: true},
		StatusPreparing: {StatusReady: true, StatusCompleted: true, StatusCancelled: true},
		StatusReady:     {StatusCompleted: true, StatusCancelled: true},
	},
	auth.RoleBuyer: {
		StatusPending:   {StatusCancelled: true},
		StatusConfirmed: {StatusCancelled: true},
	},
	auth.RoleAdmin: {
		StatusPending:   {StatusCancelled: true},
		StatusConfirmed: {StatusCancelled: true},
		StatusPreparing: {StatusCancelled: true},
		StatusReady:     {StatusCancelled: true},
	},
}

// CanTransition reports whether role may move an order from one status to another under the
// strict policy.
func CanTransition(role auth.Role, from, to Status) bool {
	return validNext[role][from][to]
}
