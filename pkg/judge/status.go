package judge

// Status identifiers returned by the execution service, following the Judge0
// status table.
const (
	StatusInQueue             = 1
	StatusProcessing          = 2
	StatusAccepted            = 3
	StatusWrongAnswer         = 4
	StatusTimeLimitExceeded   = 5
	StatusCompilationError    = 6
	StatusRuntimeErrorSIGSEGV = 7
	StatusRuntimeErrorSIGXFSZ = 8
	StatusRuntimeErrorSIGFPE  = 9
	StatusRuntimeErrorSIGABRT = 10
	StatusRuntimeErrorNZEC    = 11
	StatusRuntimeErrorOther   = 12
	StatusInternalError       = 13
	StatusExecFormatError     = 14
)

// IsAccepted reports whether the status id denotes a passed case.
func IsAccepted(statusID int) bool {
	return statusID == StatusAccepted
}

// IsRuntimeError reports whether the status id denotes any runtime error class.
func IsRuntimeError(statusID int) bool {
	return statusID >= StatusRuntimeErrorSIGSEGV && statusID <= StatusRuntimeErrorOther
}
