package handlers

import (
	"context"
)

// HelloResponse is the plain-text greeting behind the gate.
type HelloResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// HelloHandler serves the protected demo route.
type HelloHandler struct{}

// NewHelloHandler creates a new hello handler.
func NewHelloHandler() *HelloHandler {
	return &HelloHandler{}
}

// Hello returns a fixed greeting.
func (h *HelloHandler) Hello(_ context.Context, _ *struct{}) (*HelloResponse, error) {
	return &HelloResponse{
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte("Hello, World!"),
	}, nil
}
