package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Compress returns HTTP middleware that gzips JSON responses of at least
// minSize bytes for clients that accept it.
func Compress(minSize int) (func(http.Handler) http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(minSize),
		gzhttp.ContentTypes([]string{"application/json"}),
	)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}
