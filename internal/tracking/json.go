// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import (
	"encoding/json"
	"net/http"
)

// Response bodies shared by the tracking endpoints.
const (
	msgForbidden     = "Forbidden"
	msgInvalidBody   = "Invalid request body"
	msgDatabaseError = "Database error"
	msgInternalError = "Internal server error"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a {"error": message} response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSONMessage writes a 200 {"message": message} response.
func writeJSONMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}
