// Package settings serves the library settings document: working hours,
// booking duration bounds, grace minutes and the no-show penalty.
package settings

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// Keys under which the document is persisted.
const (
	KeyOpeningTime        = "openingTime"
	KeyClosingTime        = "closingTime"
	KeyMinBookingDuration = "minBookingDuration"
	KeyMaxBookingDuration = "maxBookingDuration"
	KeyGraceMinutes       = "graceMinutes"
	KeyNoShowPenaltyXP    = "noShowPenaltyXP"
)

// Store persists the document as key/value pairs.  Save replaces the whole
// document atomically.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
}

// Provider caches the current document.  Get never touches the store;
// Reload and Update do.
type Provider struct {
	mu      sync.RWMutex
	store   Store
	current model.LibrarySettings
}

// NewProvider returns a Provider holding the defaults until Reload is
// called.
func NewProvider(store Store) *Provider {
	if store == nil {
		panic("nil store passed to settings.NewProvider")
	}
	return &Provider{store: store, current: model.DefaultSettings()}
}

// Get returns a snapshot of the current settings.
func (p *Provider) Get() model.LibrarySettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Reload re-reads the store.  Missing keys fall back to defaults; a stored
// document that does not validate is rejected and the previous snapshot is
// kept.
func (p *Provider) Reload(ctx context.Context) error {
	values, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}
	next, err := decode(model.DefaultSettings(), values)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.current = next
	p.mu.Unlock()
	return nil
}

// Update merges patch into the stored document, validates the result and
// persists it as a whole.  The document is re-read first so that changes
// written by another instance since the last Reload are kept.
func (p *Provider) Update(ctx context.Context, patch model.SettingsPatch) (model.LibrarySettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	values, err := p.store.Load(ctx)
	if err != nil {
		return p.current, model.Internal(fmt.Errorf("settings: load: %w", err))
	}
	base, err := decode(model.DefaultSettings(), values)
	if err != nil {
		return p.current, err
	}
	next := base.Apply(patch)
	if err := next.Validate(); err != nil {
		return p.current, err
	}
	if err := p.store.Save(ctx, encode(next)); err != nil {
		return p.current, model.Internal(fmt.Errorf("settings: save: %w", err))
	}
	p.current = next
	log.Printf("settings: updated hours=%s-%s duration=%d-%dmin grace=%dmin penalty=%d",
		next.OpeningTime, next.ClosingTime, next.MinBookingDuration, next.MaxBookingDuration,
		next.GraceMinutes, next.NoShowPenaltyXP)
	return next, nil
}

func encode(s model.LibrarySettings) map[string]string {
	return map[string]string{
		KeyOpeningTime:        s.OpeningTime,
		KeyClosingTime:        s.ClosingTime,
		KeyMinBookingDuration: strconv.Itoa(s.MinBookingDuration),
		KeyMaxBookingDuration: strconv.Itoa(s.MaxBookingDuration),
		KeyGraceMinutes:       strconv.Itoa(s.GraceMinutes),
		KeyNoShowPenaltyXP:    strconv.Itoa(s.NoShowPenaltyXP),
	}
}

func decode(base model.LibrarySettings, values map[string]string) (model.LibrarySettings, error) {
	if v, ok := values[KeyOpeningTime]; ok {
		base.OpeningTime = v
	}
	if v, ok := values[KeyClosingTime]; ok {
		base.ClosingTime = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{KeyMinBookingDuration, &base.MinBookingDuration},
		{KeyMaxBookingDuration, &base.MaxBookingDuration},
		{KeyGraceMinutes, &base.GraceMinutes},
		{KeyNoShowPenaltyXP, &base.NoShowPenaltyXP},
	}
	for _, f := range ints {
		v, ok := values[f.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, model.NewError(model.ErrValidation, fmt.Sprintf("%s: %q is not an integer", f.key, v))
		}
		*f.dst = n
	}
	return base, nil
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{values: map[string]string{}} }

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string, len(values))
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}
