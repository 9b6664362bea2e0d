package factory

import (
	"time"

	"github.com/mcoot/towers-go/internal/dependencies/mocks"
	"github.com/mcoot/towers-go/internal/registry"
	"github.com/mcoot/towers-go/internal/storage"
	"github.com/mcoot/towers-go/internal/storage/memory"
	"github.com/mcoot/towers-go/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithStorage(memory.New())
}

// NewTestAppWithStorage creates a test App over existing storage, as a restarted process would see it
func NewTestAppWithStorage(store storage.Storage) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	// Pieces only move on explicit commands
	regCfg := registry.DefaultConfig()
	regCfg.TickInterval = 0

	app := newWithDependencies(store, mockClock, mockRandom, Config{Registry: regCfg}, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
