package queue

import "errors"

// Ошибки очереди.
var (
	// ErrAlreadyRequeued — dead letter уже был поставлен заново.
	ErrAlreadyRequeued = errors.New("dead letter already requeued")

	// ErrEmptyWorkflowType — постановка без типа workflow.
	ErrEmptyWorkflowType = errors.New("enqueue requires workflow type")
)
