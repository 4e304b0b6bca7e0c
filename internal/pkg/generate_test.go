package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAcceptKey(t *testing.T) {
	// Known handshake vector from RFC 6455 section 1.3.
	key := "dGhlIHNhbXBsZSBub25jZQ=="

	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", GenerateAcceptKey(key))
}

func TestGeneratePlayerID(t *testing.T) {
	first := GeneratePlayerID()
	second := GeneratePlayerID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestGenerateRoomID(t *testing.T) {
	id := GenerateRoomID()

	assert.NotEmpty(t, id)
	assert.LessOrEqual(t, len(id), 8)
}
