package intent

// ParseErrorKind classifies why an intent could not be turned into a Plan.
type ParseErrorKind string

const (
	// Unsupported means no known plan template matched the intent.
	Unsupported ParseErrorKind = "unsupported"
	// Ambiguous means more than one template matched equally well and
	// the caller should retry with an explicit workflow-type hint.
	Ambiguous ParseErrorKind = "ambiguous"
	// Invalid means a template matched but the resulting Plan failed
	// validation (cycle, dangling dependency, or an unknown capability).
	Invalid ParseErrorKind = "invalid"
)

// ParseError reports why Parse could not produce a Plan.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func newParseError(kind ParseErrorKind, message string) *ParseError {
	return &ParseError{Kind: kind, Message: message}
}
