package audit

import "time"

// Category routes an event to the right downstream consumer.
type Category string

const (
	CategorySecurity   Category = "security"
	CategoryOperations Category = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Category    Category  `json:"category"`
	AccountID   string    `json:"account_id,omitempty"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	CallerIP    string    `json:"caller_ip,omitempty"`
	Device      string    `json:"device,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}
