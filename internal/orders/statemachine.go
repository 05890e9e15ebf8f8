package orders

import (
	"github.com/batahq/bata-backend/pkg/enums"
)

// transitions is the single canonical definition of the order lifecycle.
// Both the mutation path and any display logic consult it; illegal moves are
// rejected here and nowhere else.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusProcessing,
		enums.OrderStatusRiderAssigned,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusRiderAssigned,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusRiderAssigned,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusRiderAssigned: {
		enums.OrderStatusPickedUp,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPickedUp: {
		enums.OrderStatusOnTheWay,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusOnTheWay: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusCompleted: {},
	enums.OrderStatusCancelled: {},
}

// CanTransition reports whether from → to is a legal lifecycle move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal destinations from the given status.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	allowed := make([]enums.OrderStatus, len(transitions[from]))
	copy(allowed, transitions[from])
	return allowed
}

// roleMayDrive encodes which semantic role drives each destination status.
// Admin overrides are handled by the caller, not here.
func roleMayDrive(role enums.UserRole, from, to enums.OrderStatus) bool {
	switch to {
	case enums.OrderStatusProcessing, enums.OrderStatusShipped:
		return role == enums.UserRoleSeller
	case enums.OrderStatusRiderAssigned,
		enums.OrderStatusPickedUp,
		enums.OrderStatusOnTheWay,
		enums.OrderStatusDelivered:
		return role == enums.UserRoleRider
	case enums.OrderStatusCompleted:
		// Buyers confirm delivery through the settlement path only.
		return false
	case enums.OrderStatusCancelled:
		// Buyer or seller may cancel, and only while the order is PENDING.
		// Later cancellations are an admin override.
		return from == enums.OrderStatusPending &&
			(role == enums.UserRoleBuyer || role == enums.UserRoleSeller)
	default:
		return false
	}
}
