package workflow

import (
	"fmt"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// Replay walks the audit trail from the graph's initial stage and returns the
// stage it ends in. Every entry must be a legal move from the stage reached so
// far. Roles are not re-checked.
func Replay(graph *StageGraph, history []entity.StageEntry) (entity.Stage, error) {
	current := graph.Initial()
	for i, entry := range history {
		if err := CheckEntry(graph, current, i, entry); err != nil {
			return current, err
		}
		current = entry.Stage
	}
	return current, nil
}

// CheckEntry reports whether entry is a legal next audit entry for a record
// at stage with version prior entries
func CheckEntry(graph *StageGraph, stage entity.Stage, version int, entry entity.StageEntry) error {
	if entry.Seq != version+1 {
		return fmt.Errorf("%w: entry %d has sequence %d", ErrReplayMismatch, version+1, entry.Seq)
	}
	if entry.FromStage != stage {
		return fmt.Errorf("%w: entry %d starts at %s, expected %s", ErrReplayMismatch, entry.Seq, entry.FromStage, stage)
	}
	target, ok := graph.Target(stage, entry.Action)
	if !ok || target != entry.Stage {
		return fmt.Errorf("%w: entry %d %s from %s cannot reach %s", ErrReplayMismatch, entry.Seq, entry.Action, stage, entry.Stage)
	}
	return nil
}

// VerifyRecord checks that replaying the record's history reproduces its current stage
func VerifyRecord(registry *Registry, record *entity.WorkflowRecord) error {
	graph, err := registry.Lookup(record.DocumentType)
	if err != nil {
		return err
	}
	stage, err := Replay(graph, record.StageHistory)
	if err != nil {
		return err
	}
	if stage != record.CurrentStage {
		return fmt.Errorf("%w: history ends at %s, record is at %s", ErrReplayMismatch, stage, record.CurrentStage)
	}
	return nil
}
