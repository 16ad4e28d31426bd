package pinecone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The SDK exposes no interfaces, so these tests cover construction and
// parameter validation without a live index.

func TestNewPineconeService_EmptyAPIKey(t *testing.T) {
	_, err := NewPineconeService("")
	assert.Error(t, err)
}

func TestNewPineconeService_ValidAPIKey(t *testing.T) {
	service, err := NewPineconeService("test-api-key-12345678-1234-1234-1234-123456789012")
	require.NoError(t, err)
	require.NotNil(t, service)
	assert.NotNil(t, service.client)
}

func TestService_ForIndex_EmptyHost(t *testing.T) {
	service, err := NewPineconeService("test-api-key-12345678-1234-1234-1234-123456789012")
	require.NoError(t, err)

	_, err = service.ForIndex("", "palette")
	assert.Error(t, err)
}
