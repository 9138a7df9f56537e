package domain

// FieldError names one offending field of a rejected submission.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeRequired = "required"
	CodeInvalid  = "invalid"
	CodeRange    = "out_of_range"
)

// ValidationErrors is the full set of violations for one submission. It is
// never partial: validation collects every offending field before returning.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

func (v *ValidationErrors) Add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Fields returns the offending field names in order of detection.
func (v *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}
