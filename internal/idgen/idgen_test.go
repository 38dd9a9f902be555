package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsUUID(t *testing.T) {
	id := New()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, id, New())
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("ent_")
	assert.True(t, strings.HasPrefix(id, "ent_"))
	assert.Len(t, id, len("ent_")+24)
	assert.NotEqual(t, id, WithPrefix("ent_"))
}
