package core

import "errors"

// Invalid-argument failures: bad configuration values, non-finite inputs, nil collaborators
var ErrInvalidArgument = errors.New("invalid argument")

// Invalid-operation failures: lifecycle misuse, always a programming bug
var (
	ErrDisposed          = errors.New("entity disposed")
	ErrAlreadyRegistered = errors.New("entity already registered")
	ErrNotRegistered     = errors.New("entity not registered")
	ErrUnbound           = errors.New("velocity not bound to a clock")
	ErrRegistryFull      = errors.New("registry arena full")
)
