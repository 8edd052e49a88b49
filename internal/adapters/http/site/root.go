// Package site serves the embedded voting page.
package site

import (
	"context"
	"net/http"
)

// Register attaches the voting page to mux at /. Paths with no embedded
// file get 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", http.FileServer(FS()))
}
