package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveries(t *testing.T) {
	d := NewDiscoveries("region.vale")

	assert.True(t, d.IsDiscovered("region.vale"))
	assert.False(t, d.IsDiscovered("region.mistwood"))

	d.Discover("region.mistwood")
	assert.True(t, d.IsDiscovered("region.mistwood"))

	d.Forget("region.vale")
	assert.False(t, d.IsDiscovered("region.vale"))
	assert.Equal(t, 1, d.Len())
}

func TestDiscoveriesIDsSorted(t *testing.T) {
	d := NewDiscoveries("z", "a", "m")
	assert.Equal(t, []string{"a", "m", "z"}, d.IDs())
}

func TestAll(t *testing.T) {
	assert.True(t, All{}.IsDiscovered("anything"))
}
