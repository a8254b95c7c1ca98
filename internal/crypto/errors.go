package crypto

import "errors"

var (
	ErrFloatNotAllowed = errors.New("float values are not allowed")
	ErrUnsupportedType = errors.New("unsupported type for canonicalization")
	ErrKeyCollision    = errors.New("normalized map key collision")
)
