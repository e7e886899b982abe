package memory

import "errors"

var (
	errLeaseNotHeld    = errors.New("memory: lease not held")
	errAccountNotFound = errors.New("memory: account not found")
)
