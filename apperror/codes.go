package apperror

// Code identifies a class of failure in the planning pipeline
type Code string

const (
	// Venue view call reverted or returned no route
	CodeQuoteUnavailable Code = "QUOTE_UNAVAILABLE"

	// Malformed address or out-of-range amount reached the parameter encoder
	CodeEncodingError Code = "ENCODING_ERROR"

	// Advisory oracle output was not valid JSON or missed required fields
	CodeAdvisoryParseError Code = "ADVISORY_PARSE_ERROR"

	// Signing or broadcast failed
	CodeSubmissionFailure Code = "SUBMISSION_FAILURE"

	// Per-opportunity deadline exceeded
	CodeEvaluationTimeout Code = "EVALUATION_TIMEOUT"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

var messages = map[Code]string{
	CodeQuoteUnavailable:   "venue quote unavailable",
	CodeEncodingError:      "flash params encoding failed",
	CodeAdvisoryParseError: "advisory response rejected",
	CodeSubmissionFailure:  "transaction submission failed",
	CodeEvaluationTimeout:  "opportunity evaluation timed out",
	CodeConfigurationError: "invalid configuration",
	CodeCircuitOpen:        "rpc circuit breaker open",
}
