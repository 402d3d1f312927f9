package orders

import "context"

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleOwner    = "owner"
)

// Machine applies status transitions. The machine is deliberately
// permissive: any of the four defined statuses may be written regardless
// of the current one, so staff can correct a misclick by moving an order
// backward. Two concurrent transitions on the same order race at
// last-write-wins.
type Machine struct {
	Store Store
}

func (m *Machine) Transition(ctx context.Context, orderID, target, actorRole string) (Order, error) {
	if actorRole != RoleStaff && actorRole != RoleOwner {
		return Order{}, ErrForbidden
	}
	status, err := ParseStatus(target)
	if err != nil {
		return Order{}, err
	}
	return m.Store.UpdateStatus(ctx, orderID, status)
}
