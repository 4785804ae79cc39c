package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

type brotliWriter struct {
	http.ResponseWriter
	bw *brotli.Writer
}

func (w *brotliWriter) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

// Compress encodes responses with brotli when client accepts 'br'
func Compress(level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")

			if !acceptsBrotli(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Encoding", "br")
			w.Header().Del("Content-Length")

			bw := brotli.NewWriterLevel(w, level)
			defer bw.Close() // nolint:errcheck

			next.ServeHTTP(&brotliWriter{ResponseWriter: w, bw: bw}, r)
		})
	}
}

func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "br" {
			continue
		}
		// 'br;q=0' means explicitly not acceptable
		return strings.ReplaceAll(params, " ", "") != "q=0"
	}
	return false
}
