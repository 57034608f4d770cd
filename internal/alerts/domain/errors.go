package alerts

import "errors"

// ErrNotFound indicates a missing alert record.
var ErrNotFound = errors.New("alert: not found")

// ErrAlertNotActive rejects acknowledge on a non-active alert.
var ErrAlertNotActive = errors.New("alert: not active")

// ErrAlertTerminal rejects transitions on a resolved or dismissed alert.
var ErrAlertTerminal = errors.New("alert: already terminal")

// ErrDuplicateRule rejects a second rule for the same (name, kpi, scope).
var ErrDuplicateRule = errors.New("threshold rule: duplicate")
