package verrors

// Convenience constructors for common error patterns across the store and runner layers.

func NotFound(what, id string) *VDocsError {
	return New(CategoryNotFound, SeverityError, what+" not found").WithContext("id", id)
}

func Conflict(what, reason string) *VDocsError {
	return New(CategoryConflict, SeverityError, what).WithContext("reason", reason)
}

func InvalidInput(field, reason string) *VDocsError {
	return New(CategoryInvalidInput, SeverityError, "invalid input").
		WithContext("field", field).WithContext("reason", reason)
}

func IOError(op string, cause error) *VDocsError {
	return Wrap(cause, CategoryIO, SeverityFatal, "filesystem operation failed").WithContext("op", op)
}

func DependencyError(service string, cause error) *VDocsError {
	return WrapRetryable(cause, CategoryDependency, SeverityWarning, "dependency call failed").
		WithContext("service", service)
}

func DependencyErrorTerminal(service string, cause error) *VDocsError {
	return Wrap(cause, CategoryDependency, SeverityFatal, "dependency call failed").
		WithContext("service", service)
}

func ProtocolError(reason string) *VDocsError {
	return New(CategoryProtocol, SeverityError, "protocol violation").WithContext("reason", reason)
}

func Internal(message string, cause error) *VDocsError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}

// Busy indicates a per-document advisory lock is already held by another run.
func Busy(docID string) *VDocsError {
	return New(CategoryConflict, SeverityWarning, "document is locked by another run").
		WithContext("doc_id", docID)
}
