package models

// ValidationError is a bad input that blocks the action without changing any state
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// QuotaExceededError means the account has used up its generations
type QuotaExceededError struct {
	Message string
}

func (e QuotaExceededError) Error() string { return e.Message }
