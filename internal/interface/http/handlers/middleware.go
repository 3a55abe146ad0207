package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyGate admits only requests from the trusted gateway, which presents
// one of keys in header or as a Bearer token. It does not identify end
// users. With no non-empty key configured it lets everything through.
func APIKeyGate(header string, keys []string) func(http.Handler) http.Handler {
	var accepted [][]byte
	for _, k := range keys {
		if k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(header)
			if key == "" {
				key, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			switch {
			case key == "":
				WriteProblem(w, http.StatusUnauthorized, "API key is required")
			case !matchesAny(accepted, []byte(key)):
				WriteProblem(w, http.StatusUnauthorized, "Invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// matchesAny compares against every key so timing does not reveal which
// one matched.
func matchesAny(accepted [][]byte, key []byte) bool {
	ok := 0
	for _, a := range accepted {
		ok |= subtle.ConstantTimeCompare(a, key)
	}
	return ok == 1
}

// Problem is an RFC 9457 error body, the same shape huma returns.
type Problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// WriteProblem is used by middleware that answers before huma sees the
// request.
func WriteProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
