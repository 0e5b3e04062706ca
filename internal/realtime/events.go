// README: Closed event union for the realtime channel (inbound and outbound).
package realtime

import (
	"encoding/json"

	"presto/internal/types"
)

// Outbound event names.
const (
	EventOrderStatusChanged    = "orderStatusChanged"
	EventNewOrderCreated       = "newOrderCreated"
	EventNewOrderForVendor     = "newOrderForVendor"
	EventDeliverableOrder      = "deliverableOrderAvailable"
	EventOrderAccepted         = "orderAcceptedByDeliveryman"
	EventCaptainLocationUpdate = "captainLocationUpdate"
	EventNearbyCaptains        = "nearbyCaptains"
	EventError                 = "error"
)

// Inbound event names.
const (
	eventCustomerJoin      = "customerJoin"
	eventVendorJoin        = "vendorJoin"
	eventCaptainLocation   = "captainLocation"
	eventGetNearbyCaptains = "getNearbyCaptains"
)

// Event is a named payload pushed to a connection. Payloads are JSON-encoded
// by the connection write pump.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// envelope is the wire form of an inbound client event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type customerJoinPayload struct {
	CustomerID types.ID `json:"customerId"`
}

type vendorJoinPayload struct {
	VendorID types.ID `json:"vendorId"`
}

type captainLocationPayload struct {
	CaptainID types.ID `json:"captainId"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorEvent(msg string) Event {
	return Event{Name: EventError, Data: errorPayload{Message: msg}}
}
