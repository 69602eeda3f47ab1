// Package llm provides the completion client for the hosted
// text-generation backend.
package llm

import (
	"context"
)

// Client is the interface for completion providers
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Health() error
}

// Request represents a completion request
type Request struct {
	Model        string
	System       string
	Prompt       string
	MaxTokens    int
	Temperature  float64
	JSONResponse bool
}

// Response represents a completion response
type Response struct {
	Content      string
	Model        string
	TokensUsed   int
	FinishReason string
}
