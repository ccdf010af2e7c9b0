// Package models provides data structures used throughout the query gateway.
package models

import (
	"time"
)

// ExecutionContext carries what a handler needs to reach the backend.
type ExecutionContext struct {
	Database string `json:"database"`
	Token    string `json:"-"`
}

// ExecutionResult is what a handler returns on success.
type ExecutionResult struct {
	Handler       string          `json:"handler" yaml:"handler"`
	Database      string          `json:"database" yaml:"database"`
	Columns       []string        `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows          [][]interface{} `json:"rows,omitempty" yaml:"rows,omitempty"`
	RowsAffected  int64           `json:"rows_affected" yaml:"rows_affected"`
	Truncated     bool            `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	ExecutionTime time.Duration   `json:"execution_time" yaml:"execution_time"`
}

// QueryRequest represents a query submission.
type QueryRequest struct {
	Query            string           `json:"query"`
	Permissions      PermissionSet    `json:"permissions,omitempty"`
	ExecutionContext ExecutionContext `json:"execution_context"`
}

// QueryOutcome pairs the pre-execution analysis with the handler's result.
type QueryOutcome struct {
	Analysis *Analysis        `json:"analysis" yaml:"analysis"`
	Result   *ExecutionResult `json:"result,omitempty" yaml:"result,omitempty"`
}
