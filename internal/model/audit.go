package model

import (
	"time"
)

// AuditInfo identifies who performed a mutating call. It is built by the HTTP
// layer and passed explicitly into every mutating service method; there is no
// ambient audit context.
type AuditInfo struct {
	ActorID int64     `json:"actor_id"`
	IP      string    `json:"ip"`
	At      time.Time `json:"at"`
}
