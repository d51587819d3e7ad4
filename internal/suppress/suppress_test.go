package suppress

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/model"
)

// fakeStore implements the blocklist slice of store.Store in memory.
type fakeStore struct {
	entries []model.BlockedSuggestion
	nextID  int
}

func (f *fakeStore) AddBlocked(ctx context.Context, entry *model.BlockedSuggestion) (string, error) {
	f.nextID++
	entry.ID = fmt.Sprintf("blk-%d", f.nextID)
	f.entries = append(f.entries, *entry)
	return entry.ID, nil
}

func (f *fakeStore) ListBlocked(ctx context.Context, scope model.Scope) ([]model.BlockedSuggestion, error) {
	var out []model.BlockedSuggestion
	for _, e := range f.entries {
		if e.Scope == scope {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllBlocked(ctx context.Context) ([]model.BlockedSuggestion, error) {
	return f.entries, nil
}

func (f *fakeStore) RemoveBlocked(ctx context.Context, id string) error {
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no entry %s", id)
}

func (f *fakeStore) AddPendingReview(context.Context, *model.PendingReviewItem) (string, error) {
	return "", nil
}
func (f *fakeStore) ListPendingReviews(context.Context, model.SuggestionKind) ([]model.PendingReviewItem, error) {
	return nil, nil
}
func (f *fakeStore) GetPendingReview(context.Context, string) (*model.PendingReviewItem, error) {
	return nil, nil
}
func (f *fakeStore) DeletePendingReview(context.Context, string) error  { return nil }
func (f *fakeStore) GetSetting(context.Context, string) (string, error) { return "", nil }
func (f *fakeStore) SetSetting(context.Context, string, string) error   { return nil }
func (f *fakeStore) AllSettings(context.Context) (map[string]string, error) {
	return nil, nil
}
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Electric Co", "electric co"},
		{"  Electric   Co  ", "electric co"},
		{"ELECTRIC\tCO", "electric co"},
		{"Groß", "gross"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRegistryIsBlockedScoped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewRegistry(&fakeStore{})
	_, err := r.Add(ctx, "Electric Co", model.Scope(model.KindCorrespondent), "bad OCR", "doc-1")
	require.NoError(t, err)

	// Normalization applies on lookup.
	blocked, err := r.IsBlocked(ctx, "  ELECTRIC   co ", model.Scope(model.KindCorrespondent))
	require.NoError(t, err)
	assert.True(t, blocked)

	// The block is scoped: other kinds are unaffected.
	blocked, err = r.IsBlocked(ctx, "Electric Co", model.Scope(model.KindTag))
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRegistryGlobalScopeBlocksAllKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewRegistry(&fakeStore{})
	_, err := r.Add(ctx, "misc", model.ScopeGlobal, "", "")
	require.NoError(t, err)

	for _, kind := range model.AllSuggestionKinds() {
		blocked, err := r.IsBlocked(ctx, "Misc", model.Scope(kind))
		require.NoError(t, err)
		assert.True(t, blocked, "kind %s", kind)
	}
}

func TestRegistryAddEmptyName(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&fakeStore{})
	_, err := r.Add(context.Background(), "   ", model.ScopeGlobal, "", "")
	assert.Error(t, err)
}

func TestRegistryRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := &fakeStore{}
	r := NewRegistry(st)
	entry, err := r.Add(ctx, "noise", model.Scope(model.KindTag), "", "")
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, entry.ID))
	blocked, err := r.IsBlocked(ctx, "noise", model.Scope(model.KindTag))
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockSet(t *testing.T) {
	t.Parallel()

	bs := NewBlockSet()
	bs.Block("Electric Co", model.Scope(model.KindCorrespondent))
	bs.Block("misc", model.ScopeGlobal)

	assert.True(t, bs.Blocked("electric   CO", model.Scope(model.KindCorrespondent)))
	assert.False(t, bs.Blocked("Electric Co", model.Scope(model.KindTag)))

	// Global entries block every scope.
	assert.True(t, bs.Blocked("MISC", model.Scope(model.KindTag)))
	assert.True(t, bs.Blocked("misc", model.ScopeGlobal))
}

func TestRegistrySnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewRegistry(&fakeStore{})
	_, err := r.Add(ctx, "Acme Corp", model.Scope(model.KindCorrespondent), "", "")
	require.NoError(t, err)
	_, err = r.Add(ctx, "junk", model.ScopeGlobal, "", "")
	require.NoError(t, err)

	bs, err := r.Snapshot(ctx)
	require.NoError(t, err)

	assert.True(t, bs.Blocked("acme corp", model.Scope(model.KindCorrespondent)))
	assert.True(t, bs.Blocked("junk", model.Scope(model.KindDocumentType)))
	assert.Equal(t, []string{"acme corp", "junk"}, bs.Names(model.Scope(model.KindCorrespondent)))
	assert.Equal(t, []string{"junk"}, bs.Names(model.Scope(model.KindTag)))
}
