package types

import (
	"encoding/json"
	"time"
)

// Opportunity is one market snapshot handed to the evaluator
type Opportunity struct {
	ID         string          `json:"opportunity_id,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot"`
	ReceivedAt time.Time       `json:"-"`
}
