package history

import "time"

// OperationRecord is one mutating RPC call recorded in the audit log.
type OperationRecord struct {
	ID           int64
	Method       string // set_env, redeploy
	Resource     string // project or deployment the call targeted
	Status       string // ok, error
	ErrorMessage *string
	DurationMS   float64
	CreatedAt    time.Time
}
