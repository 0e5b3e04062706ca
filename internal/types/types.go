// README: Common value objects shared across modules.
package types

// ID identifies a participant, order, or product.
type ID string

// Role is the participant kind a presence pool is keyed by.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleCaptain  Role = "captain"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
