package portal

import (
	"fmt"

	"github.com/dop251/goja"
)

// PayloadComputer produces the encrypted password payload the identity
// portal expects. The portal serves the crypto routine as a script fragment
// whose contract is external and unversioned, so the computation has to be
// executed at runtime rather than reimplemented.
type PayloadComputer interface {
	// Compute runs the portal-supplied script and returns the encrypted
	// form of secret for the given salt.
	Compute(script, secret, salt string) (string, error)
}

// GojaComputer executes the portal script in an embedded ECMAScript engine.
type GojaComputer struct{}

// NewGojaComputer returns a goja-backed PayloadComputer.
func NewGojaComputer() *GojaComputer { return &GojaComputer{} }

// Compute evaluates the script and calls its encryptPassword entry point.
// Any failure to compile or execute the script surfaces as
// ErrDependencyMissing: the payload cannot be produced and authentication
// must not be silently skipped.
func (*GojaComputer) Compute(script, secret, salt string) (string, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return "", fmt.Errorf("%w: compile portal script: %v", ErrDependencyMissing, err)
	}

	fn, ok := goja.AssertFunction(vm.Get("encryptPassword"))
	if !ok {
		return "", fmt.Errorf("%w: portal script defines no encryptPassword function", ErrDependencyMissing)
	}

	res, err := fn(goja.Undefined(), vm.ToValue(secret), vm.ToValue(salt))
	if err != nil {
		return "", fmt.Errorf("%w: run encryptPassword: %v", ErrDependencyMissing, err)
	}
	return res.String(), nil
}
