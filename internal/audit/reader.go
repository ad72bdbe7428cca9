package audit

import (
	"context"

	"apflow/internal/audit/domain"
	auditrepo "apflow/internal/audit/repository"
)

// NameResolver resolves actor IDs to display names at read time.
type NameResolver interface {
	DisplayNames(ctx context.Context, actorIDs []string) (map[string]string, error)
}

// EventView is an audit event with the actor ID resolved to a display name.
// ActorName is "System" for events with no actor.
type EventView struct {
	domain.Event
	ActorName string
}

// Reader lists audit events with actor names resolved.
type Reader struct {
	repo  auditrepo.Repository
	names NameResolver
}

// NewReader returns a Reader over repo using names for display-name lookup.
func NewReader(repo auditrepo.Repository, names NameResolver) *Reader {
	return &Reader{repo: repo, names: names}
}

// List returns events matching the filter, in creation order, with actor
// display names attached. Unknown actor IDs fall back to the raw ID.
func (r *Reader) List(ctx context.Context, f domain.Filter) ([]*EventView, error) {
	events, err := r.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	idSet := make(map[string]struct{})
	for _, e := range events {
		if e.ActorID != "" {
			idSet[e.ActorID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	var names map[string]string
	if len(ids) > 0 && r.names != nil {
		names, err = r.names.DisplayNames(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*EventView, len(events))
	for i, e := range events {
		v := &EventView{Event: *e}
		switch {
		case e.ActorID == "":
			v.ActorName = domain.SystemActorName
		case names[e.ActorID] != "":
			v.ActorName = names[e.ActorID]
		default:
			v.ActorName = e.ActorID
		}
		out[i] = v
	}
	return out, nil
}
