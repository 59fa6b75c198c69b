// Package directory resolves actor identities to roles from configuration.
package directory

import (
	"context"
	"fmt"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// StaticDirectory implements port.RoleResolver over a fixed actor map
type StaticDirectory struct {
	roles map[string]entity.Role
}

// NewStaticDirectory validates every configured role
func NewStaticDirectory(actors map[string]string) (*StaticDirectory, error) {
	roles := make(map[string]entity.Role, len(actors))
	for id, name := range actors {
		role := entity.Role(name)
		if !role.IsValid() {
			return nil, fmt.Errorf("actor %q: unknown role %q", id, name)
		}
		roles[id] = role
	}
	return &StaticDirectory{roles: roles}, nil
}

// GetRole returns the configured role of an actor
func (d *StaticDirectory) GetRole(ctx context.Context, actorID string) (entity.Role, error) {
	role, ok := d.roles[actorID]
	if !ok {
		return "", fmt.Errorf("%w: %s", port.ErrUnknownActor, actorID)
	}
	return role, nil
}

var _ port.RoleResolver = (*StaticDirectory)(nil)
