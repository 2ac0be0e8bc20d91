package handler

import "net/http"

// HandleHealth is the liveness probe: unconditionally OK. It touches no
// dependency — a wedged database should not make the process look dead.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
