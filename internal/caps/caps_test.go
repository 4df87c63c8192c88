package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	c := Detect(true, false)
	assert.True(t, c.IdleScheduling)
	assert.Equal(t, "jpg", c.ImageFormat())
	assert.Equal(t, "idle=true webp=false", c.String())

	assert.Equal(t, "webp", Detect(false, true).ImageFormat())
}
