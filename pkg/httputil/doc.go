// Package httputil provides HTTP utilities for standardized request/response handling.
//
// Response helpers write JSON bodies with consistent shapes:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteAppError(w, err) // maps kinded errors to status codes
//
// Request helpers parse JSON bodies and mux path parameters:
//
//	var req createDirectoryRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
package httputil
