package input

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ConserveLee/pxlreact/internal/logger"
)

func TestDryRunTracksHeldKeys(t *testing.T) {
	d := &DryRun{Log: logger.Discard()}

	assert.NoError(t, d.KeyDown("1"))
	assert.NoError(t, d.KeyDown("2"))
	assert.Equal(t, 2, d.Held())

	assert.NoError(t, d.KeyUp("1"))
	assert.Equal(t, 1, d.Held())

	// Releasing a key that is not down is harmless
	assert.NoError(t, d.KeyUp("1"))
	assert.NoError(t, d.KeyUp("2"))
	assert.Equal(t, 0, d.Held())
}
