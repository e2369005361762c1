package handler

const (
	errInternalServer      = "Internal server error"
	errScheduleNotFound    = "Schedule not found"
	errExecutionNotFound   = "Execution not found"
	errPauseFailed         = "Failed to pause schedule"
	errResumeFailed        = "Failed to resume schedule"
	errTriggerRegistration = "Failed to add schedule to scheduler"
	errUpdateFailed        = "Failed to apply schedule change to scheduler"
	errInvalidLimit        = "limit must be an integer between 1 and 1000"
	errInvalidStatus       = "status must be one of active, paused, disabled"
)
