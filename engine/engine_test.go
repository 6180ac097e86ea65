package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionOptions_Blocks(t *testing.T) {
	opts := SessionOptions{Blocked: DefaultBlocked}

	for _, kind := range []ResourceKind{ResourceImage, ResourceMedia, ResourceFont, ResourceStylesheet, ResourceWebSocket, ResourceEventSource} {
		assert.True(t, opts.Blocks(kind), "expected %s to be blocked", kind)
	}
	for _, kind := range []ResourceKind{ResourceDocument, ResourceScript, ResourceXHR} {
		assert.False(t, opts.Blocks(kind), "expected %s to be allowed", kind)
	}
}

func TestParseResourceKinds(t *testing.T) {
	got := ParseResourceKinds([]string{"Image", "Bogus", "WebSocket", "image"})
	assert.Equal(t, []ResourceKind{ResourceImage, ResourceWebSocket}, got)
}
