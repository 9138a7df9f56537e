package domain

// Validator turns a raw form body into a typed Submission, or reports every
// offending field. It has no side effects.
type Validator interface {
	Validate(raw RawSubmission) (Submission, *ValidationErrors)
}
