package schemas

import "errors"

var (
	ErrEmptyIdentifier   = errors.New("identifier is required")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrPartialForeignKey = errors.New("foreign target and foreign key must be set together")
	ErrInvalidFetchMode  = errors.New("invalid foreign fetch mode")
)
