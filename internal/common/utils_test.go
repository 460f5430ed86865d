package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("image/png", "image/", "application/pdf"))
	assert.True(t, HasAny("Application/PDF", "application/pdf"))
	assert.False(t, HasAny("text/plain", "image/", "application/pdf"))
	assert.False(t, HasAny("image/png"))
}
