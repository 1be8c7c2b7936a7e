package portal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weilai0412/dormwatt/pkg/portal"
)

func TestGojaComputer_Compute(t *testing.T) {
	script := `function encryptPassword(pwd, salt) { return salt + ":" + pwd; }`

	c := portal.NewGojaComputer()
	got, err := c.Compute(script, "secret", "salty")
	require.NoError(t, err)
	assert.Equal(t, "salty:secret", got)
}

func TestGojaComputer_Compute_UsesScriptLogic(t *testing.T) {
	// The portal script may do arbitrary work before producing the payload.
	script := `
		function reverse(s) { return s.split("").reverse().join(""); }
		function encryptPassword(pwd, salt) { return reverse(pwd) + salt; }
	`

	c := portal.NewGojaComputer()
	got, err := c.Compute(script, "abc", "XY")
	require.NoError(t, err)
	assert.Equal(t, "cbaXY", got)
}

func TestGojaComputer_Compute_CompileError(t *testing.T) {
	c := portal.NewGojaComputer()
	_, err := c.Compute(`function (`, "secret", "salty")
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrDependencyMissing)
}

func TestGojaComputer_Compute_MissingEntryPoint(t *testing.T) {
	c := portal.NewGojaComputer()
	_, err := c.Compute(`var x = 1;`, "secret", "salty")
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrDependencyMissing)
}

func TestGojaComputer_Compute_ThrowingScript(t *testing.T) {
	c := portal.NewGojaComputer()
	_, err := c.Compute(`function encryptPassword() { throw new Error("boom"); }`, "secret", "salty")
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrDependencyMissing)
}
