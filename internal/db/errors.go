package db

import "errors"

// Sentinel errors for store operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrKeyExists   = errors.New("db: key already exists")
)

// Op constants map to backend command names for error context.
const (
	OpPing       = "PING"
	OpSAdd       = "SADD"
	OpSRem       = "SREM"
	OpSMembers   = "SMEMBERS"
	OpSCard      = "SCARD"
	OpSMIsMember = "SMISMEMBER"
	OpHSet       = "HSET"
	OpHGetAll    = "HGETALL"
	OpDel        = "DEL"
	OpExists     = "EXISTS"

	OpPut      = "PutItem"
	OpGetBatch = "BatchGetItem"
	OpDelete   = "DeleteItem"
	OpDescribe = "DescribeTable"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
