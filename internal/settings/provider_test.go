package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bookmyseat/internal/model"
)

type failingStore struct{ *MemoryStore }

func (f *failingStore) Save(context.Context, map[string]string) error { return errors.New("disk full") }

func TestProviderDefaultsUntilReload(t *testing.T) {
	store := NewMemoryStore()
	p := NewProvider(store)
	assert.Equal(t, model.DefaultSettings(), p.Get())

	require.NoError(t, store.Save(context.Background(), map[string]string{
		KeyOpeningTime:  "07:00",
		KeyGraceMinutes: "10",
	}))
	require.NoError(t, p.Reload(context.Background()))

	got := p.Get()
	assert.Equal(t, "07:00", got.OpeningTime)
	assert.Equal(t, 10, got.GraceMinutes)
	assert.Equal(t, model.DefaultSettings().ClosingTime, got.ClosingTime)
}

func TestProviderReloadKeepsSnapshotOnBadDocument(t *testing.T) {
	store := NewMemoryStore()
	p := NewProvider(store)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]string{KeyMinBookingDuration: "abc"}))
	assert.ErrorIs(t, p.Reload(ctx), model.ErrValidation)

	require.NoError(t, store.Save(ctx, map[string]string{KeyClosingTime: "06:00"}))
	assert.ErrorIs(t, p.Reload(ctx), model.ErrValidation)
	assert.Equal(t, model.DefaultSettings(), p.Get())
}

func TestProviderUpdate(t *testing.T) {
	store := NewMemoryStore()
	p := NewProvider(store)
	ctx := context.Background()
	grace := 15

	got, err := p.Update(ctx, model.SettingsPatch{GraceMinutes: &grace})
	require.NoError(t, err)
	assert.Equal(t, 15, got.GraceMinutes)

	saved, _ := store.Load(ctx)
	assert.Equal(t, "15", saved[KeyGraceMinutes])
	assert.Equal(t, "08:00", saved[KeyOpeningTime])

	shortest := 500
	_, err = p.Update(ctx, model.SettingsPatch{MinBookingDuration: &shortest})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, 15, p.Get().GraceMinutes)
}

func TestProviderUpdateStoreFailure(t *testing.T) {
	p := NewProvider(&failingStore{NewMemoryStore()})
	grace := 1
	_, err := p.Update(context.Background(), model.SettingsPatch{GraceMinutes: &grace})
	assert.ErrorIs(t, err, model.ErrInternal)
	assert.Equal(t, model.DefaultSettings().GraceMinutes, p.Get().GraceMinutes)
}

func TestProviderUpdateKeepsChangesFromOtherInstances(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	mine, other := NewProvider(store), NewProvider(store)
	require.NoError(t, mine.Reload(ctx))

	closing := "20:00"
	_, err := other.Update(ctx, model.SettingsPatch{ClosingTime: &closing})
	require.NoError(t, err)

	grace := 12
	got, err := mine.Update(ctx, model.SettingsPatch{GraceMinutes: &grace})
	require.NoError(t, err)
	assert.Equal(t, "20:00", got.ClosingTime)
	assert.Equal(t, 12, got.GraceMinutes)

	saved, _ := store.Load(ctx)
	assert.Equal(t, "20:00", saved[KeyClosingTime])
	assert.Equal(t, "12", saved[KeyGraceMinutes])
}

type unreadableStore struct{ *MemoryStore }

func (unreadableStore) Load(context.Context) (map[string]string, error) {
	return nil, errors.New("connection refused")
}

func TestProviderUpdateLoadFailure(t *testing.T) {
	p := NewProvider(unreadableStore{NewMemoryStore()})
	grace := 1
	_, err := p.Update(context.Background(), model.SettingsPatch{GraceMinutes: &grace})
	assert.ErrorIs(t, err, model.ErrInternal)
	assert.Equal(t, model.DefaultSettings(), p.Get())
}
