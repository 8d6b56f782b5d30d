package enum

// PushResult is the per-item outcome of a push ingestion request.
type PushResult string

const (
	PushResultOK        PushResult = "OK"
	PushResultDuplicate PushResult = "DUPLICATE"
	PushResultError     PushResult = "ERROR"
)
