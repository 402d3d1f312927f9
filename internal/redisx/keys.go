package redisx

import "time"

const (
	// Order status poll cache: order_status:{order_id} -> {"status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Menu item display cache: menu_item:{id} -> item JSON
	KeyMenuItem = "menu_item:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLMenuCache   = 5 * time.Minute
)
