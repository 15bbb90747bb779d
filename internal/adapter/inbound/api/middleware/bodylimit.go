package middleware

import (
	"net/http"
)

// maxBodyBytes caps request bodies at 1 MB; raw logs larger than that are
// rejected before JSON decoding.
const maxBodyBytes = 1 << 20

// BodyLimit bounds the request body size so a single oversized submission
// cannot exhaust memory.
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
