package tsrpc

import "encoding/json"

// Successful responses are the bare JSON value of the result, which is what
// the generated client resolves its promise with. Failures are wrapped in an
// {"error": {...}} envelope with a non-2xx status.

type errorResponse struct {
	Error *Error `json:"error"`
}

// encodeResponse writes a successful response.
func encodeResponse(w jsonWriter, result any) error {
	return json.NewEncoder(w).Encode(result)
}

// encodeErrorResponse writes an error envelope.
func encodeErrorResponse(w jsonWriter, err *Error) error {
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}

// jsonWriter is satisfied by http.ResponseWriter and allows testing.
type jsonWriter interface {
	Write([]byte) (int, error)
}
