package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse is the envelope every handler answers with. Game routes fill
// Data; the platform-facing routes fill Payload.
type JSONResponse struct {
	Success bool        `json:"success"`
	Error   *string     `json:"error"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, body JSONResponse) {
	ctx.JSON(status, body)
}

// Success returns a standard success response carrying data.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, JSONResponse{Success: true, Data: data})
}

// SuccessMessage is Success with a human readable message.
func SuccessMessage(ctx *gin.Context, message string, data interface{}) {
	Respond(ctx, http.StatusOK, JSONResponse{Success: true, Message: message, Data: data})
}

// Payload returns a success response in the platform shape.
func Payload(ctx *gin.Context, payload interface{}) {
	Respond(ctx, http.StatusOK, JSONResponse{Success: true, Payload: payload})
}

// Rejected reports a request that was understood but not applied, such as a
// second check-in on the same day. It is not an HTTP error.
func Rejected(ctx *gin.Context, message string, payload interface{}) {
	Respond(ctx, http.StatusOK, JSONResponse{Success: false, Error: &message, Payload: payload})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, message string) {
	Respond(ctx, status, JSONResponse{Success: false, Error: &message})
}
