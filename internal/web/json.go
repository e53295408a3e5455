// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response body", "error", err)
	}
}

// decodeJSON reads a JSON object into dst. Malformed bodies fail validation.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return oops.Code("REQUEST_MALFORMED").
			With("cause", err.Error()).
			Public("Request body must be a valid JSON object.").
			Wrap(auth.ErrValidation)
	}
	return nil
}

// required fails on the first field absent from the request body.
func required(fields ...field) error {
	for _, f := range fields {
		if f.value == nil {
			return oops.Code("REQUEST_FIELD_MISSING").
				With("field", f.name).
				Public("Field required: " + f.name).
				Wrap(auth.ErrValidation)
		}
	}
	return nil
}

// field is a request field decoded as *string so absence is detectable.
type field struct {
	name  string
	value *string
}
