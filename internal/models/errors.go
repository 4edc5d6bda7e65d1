package models

import "errors"

// ErrMalformedSettings marks stored settings that exist but cannot be
// parsed. Callers treat them as absent.
var ErrMalformedSettings = errors.New("malformed settings")
