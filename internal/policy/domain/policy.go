package domain

import "time"

// Policy is a department-level login policy written in Rego.
type Policy struct {
	ID           string
	DepartmentID string
	Name         string
	Rules        string
	Enabled      bool
	CreatedAt    time.Time
}
