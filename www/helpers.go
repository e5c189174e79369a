package www

import (
	"encoding/json"
	"log"
	"net/http"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handlers) jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("www: encode response: %v", err)
	}
}

// jsonError writes {"success": false, "message": msg}.
func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	h.jsonStatus(w, code, map[string]any{"success": false, "message": msg})
}

// serverError logs err and answers with a generic 500.
func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("www: %s %s: %v", r.Method, r.URL.Path, err)
	h.jsonError(w, "Server error", http.StatusInternalServerError)
}
