// Package httputil provides shared HTTP response helpers.
//
// Every API response uses the same envelope:
//
//	{"success": true,  "data": …,                     "meta": {…}}
//	{"success": false, "error": {"code", "message"},  "meta": {…}}
package httputil

import "github.com/gin-gonic/gin"

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries response metadata, currently the correlation ID.
type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

// Envelope is the uniform response wrapper.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// requestMeta pulls the correlation ID from the Gin context
// (set by the request ID middleware).
func requestMeta(c *gin.Context) *Meta {
	if rid, exists := c.Get("request_id"); exists {
		if s, ok := rid.(string); ok && s != "" {
			return &Meta{RequestID: s}
		}
	}

	return nil
}

// RespondData writes a success envelope with the given payload.
func RespondData(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data, Meta: requestMeta(c)})
}

// RespondError writes a standardized error envelope and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message},
		Meta:    requestMeta(c),
	})
}
