package portal

import "errors"

var (
	// ErrDependencyMissing means the login payload could not be computed:
	// the portal's crypto script was not found, did not compile, or no
	// PayloadComputer is configured. Operator-fixable, fatal for the cycle.
	ErrDependencyMissing = errors.New("login payload computation unavailable")

	// ErrAuthFailed means the portal rejected the login. The response does
	// not distinguish wrong credentials from anti-automation friction that
	// demands interactive slider verification, so neither do we.
	ErrAuthFailed = errors.New("authentication rejected")

	// ErrAuthExpired means a previously valid session was rejected
	// mid-cycle. The caller may re-authenticate once and retry.
	ErrAuthExpired = errors.New("session expired")

	// ErrQuery means the balance response for one room was malformed or
	// the room was not found. The room is skipped for the cycle.
	ErrQuery = errors.New("balance query failed")
)
