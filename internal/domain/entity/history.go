package entity

import "time"

// StageEntry is one append-only audit record of a workflow transition
type StageEntry struct {
	Seq       int       `json:"seq"`
	FromStage Stage     `json:"from_stage"`
	Stage     Stage     `json:"stage"`
	ActorID   string    `json:"actor_id"`
	ActorRole Role      `json:"actor_role"`
	Action    Action    `json:"action"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangesStage reports whether the entry moved the record to another stage
func (e StageEntry) ChangesStage() bool {
	return e.FromStage != e.Stage
}
