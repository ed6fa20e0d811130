package api

import (
	"net/http"
	"strings"
)

// ConversionHandler maps ratings onto international scales.
type ConversionHandler struct {
	deps ConversionDependencies
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(deps ConversionDependencies) *ConversionHandler {
	return &ConversionHandler{deps: deps}
}

// HandleConvert handles GET /ratings/convert?rating=R&scale=S.
func (h *ConversionHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	const op = "api.convert"
	rating, err := queryFloat(r, "rating")
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("scale"))
	if name == "" {
		writeServiceError(w, NewKind(op, ErrBadRequest))
		return
	}

	v, err := h.deps.Convert(r.Context(), rating, name)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, conversionResponse{Rating: rating, Scale: strings.ToLower(name), Value: v})
}

// HandleInvert handles GET /ratings/invert?value=V&scale=S, returning the
// local rating as "rating".
func (h *ConversionHandler) HandleInvert(w http.ResponseWriter, r *http.Request) {
	const op = "api.invert"
	value, err := queryFloat(r, "value")
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("scale"))
	if name == "" {
		writeServiceError(w, NewKind(op, ErrBadRequest))
		return
	}

	local, err := h.deps.Invert(r.Context(), value, name)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, conversionResponse{Rating: local, Scale: strings.ToLower(name), Value: value})
}

// HandleConvertAll handles GET /ratings/convert/all?rating=R.
func (h *ConversionHandler) HandleConvertAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.convert_all"
	rating, err := queryFloat(r, "rating")
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	values, err := h.deps.ConvertAll(r.Context(), rating)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rating": rating, "values": values})
}

// HandleScales handles GET /ratings/scales.
func (h *ConversionHandler) HandleScales(w http.ResponseWriter, r *http.Request) {
	const op = "api.scales"
	scales, err := h.deps.Scales(r.Context())
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scales)
}
