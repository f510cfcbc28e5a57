package executor

// GraphQLError is a located error produced during execution.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return pathToString(e.Path) + ": " + e.Message
}

// ExecutionResult is the response of one operation.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
