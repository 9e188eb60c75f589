// Package mcp exposes passage retrieval as a Model Context Protocol server.
package mcp

import (
	"context"
	"errors"
	"fmt"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Custom MCP error codes for docrag.
const (
	// ErrCodeIndexNotFound indicates the index has not been built.
	ErrCodeIndexNotFound = -32001

	// ErrCodeServiceFailed indicates the embedding service failed.
	ErrCodeServiceFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is a protocol error with a code and a client-facing message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid tool arguments.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var docErr *docerrors.DocError
	if errors.As(err, &docErr) {
		return mapDocError(docErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

func mapDocError(de *docerrors.DocError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s (%s)", de.Message, de.Suggestion)
	}

	switch de.Category {
	case docerrors.CategoryConfig:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case docerrors.CategoryExternal:
		switch de.Code {
		case docerrors.ErrCodeEmbeddingsMissing:
			return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
		case docerrors.ErrCodeServiceTimeout:
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		default:
			return &MCPError{Code: ErrCodeServiceFailed, Message: message}
		}
	case docerrors.CategoryIO, docerrors.CategoryIndex:
		if de.Code == docerrors.ErrCodeFileNotFound || de.Code == docerrors.ErrCodeIndexOpen {
			return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
