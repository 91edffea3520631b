package models

import (
	"metamakers.org/rfid-access-mqtt/card"
	"metamakers.org/rfid-access-mqtt/relay"
)

const (
	ResponseManual      = "manual"
	ResponseAlwaysGrant = "always_grant"
	ResponseAlwaysDeny  = "always_deny"
	ResponseToggle      = "toggle"
)

// Responder stands in for the authorizer: it decides which signal answers a
// scan seen on RFID_SCAN.
type Responder struct {
	Mode    string
	granted map[string]bool
}

func NewResponder() Responder {
	return Responder{Mode: ResponseManual, granted: make(map[string]bool)}
}

// Respond returns the signal for a scanned uid, or false in manual mode or
// when the payload is not a uid.
func (responder Responder) Respond(payload string) (relay.Signal, bool) {
	uid, err := card.ParseUID(payload)
	if err != nil {
		return relay.Unknown, false
	}

	switch responder.Mode {
	case ResponseAlwaysGrant:
		return relay.Grant, true
	case ResponseAlwaysDeny:
		return relay.Deny, true
	case ResponseToggle:
		key := uid.String()
		responder.granted[key] = !responder.granted[key]
		if responder.granted[key] {
			return relay.Grant, true
		}
		return relay.Deny, true
	default:
		return relay.Unknown, false
	}
}
