package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, uint32(3), Coalesce[uint32](0, 3, 4))
	assert.Equal(t, "a", Coalesce("a", "b"))
	assert.Equal(t, 0, Coalesce(0, 0))
	assert.Equal(t, "", Coalesce[string]())
}
