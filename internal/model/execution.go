// Package model defines the data structures persisted by the host service.
package model

import "time"

// Execution is the host-side record of one sandbox invocation. The sandbox
// component itself never persists anything — keeping a history of runs is
// the calling service's job, and this is that record.
type Execution struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Success       bool      `json:"success"`
	ErrorType     string    `json:"errorType,omitempty"`
	Stdout        string    `json:"stdout"`
	Stderr        string    `json:"stderr"`
	ExecutionTime float64   `json:"executionTime"`
	TestsPassed   int       `json:"testsPassed"`
	TestsTotal    int       `json:"testsTotal"`
	CreatedAt     time.Time `json:"createdAt"`
}
