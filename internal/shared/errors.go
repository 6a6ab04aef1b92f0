package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrInvalidToken     = fmt.Errorf("token is not valid")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Remote response classification
	ErrTransport        = fmt.Errorf("transport error")
	ErrUnauthorized     = fmt.Errorf("unauthorized request")
	ErrRateLimited      = fmt.Errorf("too many requests")
	ErrBadRequest       = fmt.Errorf("bad request")
	ErrUnexpectedStatus = fmt.Errorf("unhandled status code")
	ErrParse            = fmt.Errorf("malformed response")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrOutsideNamespace   = fmt.Errorf("uri outside playlist namespace")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
