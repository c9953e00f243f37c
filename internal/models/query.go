package models

// QueryStatus is the lifecycle of a query stream or rollup slot.
type QueryStatus string

const (
	QueryIdle    QueryStatus = "IDLE"
	QueryPending QueryStatus = "PENDING"
	QuerySuccess QueryStatus = "SUCCESS"
	QueryFailure QueryStatus = "FAILURE"
)
