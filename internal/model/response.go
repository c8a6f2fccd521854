package model

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AuthResponse is the payload returned by register and login: the public view
// of the subject plus a signed session token.
type AuthResponse struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}
