// Package server defines shared payload types and utility helpers that are
// reused across client, hub, and handler logic.
package server

import "strings"

// UploadResponse is the JSON body returned by the upload endpoint. The url
// points at the stored file and is what clients embed in message content.
type UploadResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the JSON body returned for failed HTTP requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
