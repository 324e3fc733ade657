package internal

import (
	"net/http"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// ScopeSource reports granted scopes.
type ScopeSource interface {
	HasScope(types.Scope) bool
}

// Gate refuses operations whose scope was not granted, before any request is made.
type Gate struct {
	scopes ScopeSource
}

// NewGate creates a Gate reading from src.
func NewGate(src ScopeSource) *Gate {
	return &Gate{scopes: src}
}

// Allow returns nil when required was granted and a *ScopeError otherwise.
func (g *Gate) Allow(required types.Scope) error {
	if g.scopes.HasScope(required) {
		return nil
	}
	return &pkgerrs.ScopeError{Scope: string(required), StatusCode: http.StatusUnauthorized}
}
