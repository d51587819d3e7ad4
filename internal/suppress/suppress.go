// Package suppress implements the durable deny-list of rejected suggestion
// names, scoped per suggestion kind or globally.
package suppress

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/store"
)

var foldCaser = cases.Fold()

// Normalize returns the canonical comparison form of a suggestion name:
// trimmed, Unicode case-folded, with internal whitespace runs collapsed to
// a single space.
func Normalize(name string) string {
	return foldCaser.String(strings.Join(strings.Fields(name), " "))
}

// Registry consults and mutates the persisted blocklist.
type Registry struct {
	store store.Store
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

// IsBlocked reports whether the normalized form of name is blocked under
// the given scope or under the global scope.
func (r *Registry) IsBlocked(ctx context.Context, name string, scope model.Scope) (bool, error) {
	normalized := Normalize(name)

	for _, s := range []model.Scope{scope, model.ScopeGlobal} {
		entries, err := r.store.ListBlocked(ctx, s)
		if err != nil {
			return false, eris.Wrapf(err, "suppress: list %s blocklist", s)
		}
		for _, e := range entries {
			if e.NormalizedName == normalized {
				return true, nil
			}
		}
		if scope == model.ScopeGlobal {
			break
		}
	}
	return false, nil
}

// Add persists a new blocklist entry for name under scope.
func (r *Registry) Add(ctx context.Context, name string, scope model.Scope, reason, sourceDocument string) (*model.BlockedSuggestion, error) {
	entry := &model.BlockedSuggestion{
		Name:           strings.TrimSpace(name),
		NormalizedName: Normalize(name),
		Scope:          scope,
		Reason:         reason,
		SourceDocument: sourceDocument,
	}
	if entry.NormalizedName == "" {
		return nil, eris.New("suppress: empty name")
	}
	if _, err := r.store.AddBlocked(ctx, entry); err != nil {
		return nil, eris.Wrap(err, "suppress: add")
	}
	return entry, nil
}

// Remove deletes a blocklist entry by id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	return eris.Wrap(r.store.RemoveBlocked(ctx, id), "suppress: remove")
}

// Snapshot loads the full blocklist into an in-memory BlockSet for use by a
// batch run, which checks names once per candidate without further store
// round-trips.
func (r *Registry) Snapshot(ctx context.Context) (*BlockSet, error) {
	entries, err := r.store.ListAllBlocked(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "suppress: snapshot")
	}

	bs := NewBlockSet()
	for _, e := range entries {
		bs.add(e.NormalizedName, e.Scope)
	}
	return bs, nil
}

// BlockSet is an in-memory view of the blocklist keyed by normalized name.
// It is not safe for concurrent mutation; a bootstrap scan owns its copy.
type BlockSet struct {
	byScope map[model.Scope]map[string]struct{}
}

// NewBlockSet creates an empty BlockSet.
func NewBlockSet() *BlockSet {
	return &BlockSet{byScope: make(map[model.Scope]map[string]struct{})}
}

func (b *BlockSet) add(normalized string, scope model.Scope) {
	set, ok := b.byScope[scope]
	if !ok {
		set = make(map[string]struct{})
		b.byScope[scope] = set
	}
	set[normalized] = struct{}{}
}

// Block marks the normalized form of name as blocked under scope.
func (b *BlockSet) Block(name string, scope model.Scope) {
	b.add(Normalize(name), scope)
}

// Names returns the normalized names blocked under scope, including global
// entries, sorted for stable prompt construction.
func (b *BlockSet) Names(scope model.Scope) []string {
	seen := make(map[string]struct{})
	for _, s := range []model.Scope{scope, model.ScopeGlobal} {
		for n := range b.byScope[s] {
			seen[n] = struct{}{}
		}
		if scope == model.ScopeGlobal {
			break
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Blocked reports whether name is blocked under scope or globally.
func (b *BlockSet) Blocked(name string, scope model.Scope) bool {
	normalized := Normalize(name)
	if set, ok := b.byScope[scope]; ok {
		if _, hit := set[normalized]; hit {
			return true
		}
	}
	if scope != model.ScopeGlobal {
		if set, ok := b.byScope[model.ScopeGlobal]; ok {
			if _, hit := set[normalized]; hit {
				return true
			}
		}
	}
	return false
}
