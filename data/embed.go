package data

import (
	_ "embed"
)

// DefaultDepartments is the registry used when no departments are configured
//
//go:embed departments.yaml
var DefaultDepartments []byte
