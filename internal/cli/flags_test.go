package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracelayout/internal/layout"
)

func TestPolicyValue(t *testing.T) {
	var p layout.AlignPolicy
	v := newPolicyValue(&p)
	assert.Equal(t, "always", v.String())

	require.NoError(t, v.Set("elide"))
	assert.Equal(t, layout.AlignElideRedundant, p)
	assert.Equal(t, "elide", v.String())

	assert.Error(t, v.Set("never"))
	assert.Equal(t, layout.AlignElideRedundant, p, "failed Set keeps the value")
}

func TestTraceName(t *testing.T) {
	assert.Equal(t, "explicit", traceName("explicit", "testdata/specs/counter"))
	assert.Equal(t, "counter", traceName("", "testdata/specs/counter"))
	assert.Equal(t, "counter", traceName("", "testdata/specs/counter/"))
	assert.Equal(t, "specs", traceName("", filepath.Join("testdata", "specs", "counter", "..")))
}
