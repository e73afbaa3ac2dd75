package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(StructureValidator{RequiredFields: []string{"satellites"}}))

	v, ok := reg.Get("structure_validator")
	require.True(t, ok)
	assert.Equal(t, "structure_validator", v.Name())

	assert.Equal(t, []string{"structure_validator"}, reg.Names())
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(StructureValidator{}))
	err := reg.Register(StructureValidator{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(StructureValidator{}))
	reg.Unregister("structure_validator")
	_, ok := reg.Get("structure_validator")
	assert.False(t, ok)

	// Unknown name is a no-op.
	reg.Unregister("nope")
}

func TestRegistry_RejectsEmptyName(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Func{ValidatorName: ""})
	require.Error(t, err)
}
