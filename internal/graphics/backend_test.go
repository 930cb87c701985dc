package graphics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBackendHeadless(t *testing.T) {
	b, err := CreateBackend(BackendHeadless)
	require.NoError(t, err)
	assert.True(t, b.IsHeadless())
	assert.Equal(t, "Headless", b.GetName())
}

func TestCreateBackendTerminal(t *testing.T) {
	b, err := CreateBackend(BackendTerminal)
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestHeadlessBackendRequiresInitializeBeforeCreateWindow(t *testing.T) {
	b := NewHeadlessBackend()
	_, err := b.CreateWindow("test", 256, 240)
	assert.Error(t, err)

	require.NoError(t, b.Initialize(Config{WindowWidth: 256, WindowHeight: 240}))
	win, err := b.CreateWindow("test", 256, 240)
	require.NoError(t, err)
	assert.NotNil(t, win)
}

func TestHeadlessWindowRenderFrameTracksCountWithoutDumping(t *testing.T) {
	b := NewHeadlessBackend()
	require.NoError(t, b.Initialize(Config{Headless: true}))
	win, err := b.CreateWindow("test", 256, 240)
	require.NoError(t, err)

	var frame [256 * 240 * 4]uint8
	for i := 0; i < 5; i++ {
		require.NoError(t, win.RenderFrame(frame))
	}

	assert.Equal(t, 5, win.(*HeadlessWindow).GetFrameCount())
	assert.False(t, win.ShouldClose())
	assert.Empty(t, win.PollEvents())
}
