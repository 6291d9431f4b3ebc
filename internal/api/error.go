package api

// HTTPError pairs the status and client-facing message for a failed request.
// ErrorLog carries the server-side cause; it is logged, never sent to the
// client.
type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

type ApiError struct {
	Error string `json:"message"`
}
