package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"caffio/internal/app"
	"caffio/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
	// MaxUploadBytes caps /upload-image bodies; 0 means 10 MiB.
	MaxUploadBytes int64
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/cafes", h.listCafes)
	s.mux.Post("/cafes", h.createCafe)
	s.mux.Get("/cafes/nearby", h.nearby)
	s.mux.Get("/cafes/markers", h.markers)
	s.mux.Post("/upload-image", h.uploadImage)

	s.mux.Get("/search/suggest", h.suggest)
	s.mux.Get("/search/retrieve/{mapboxID}", h.retrieve)
	s.mux.Get("/geocode/reverse", h.reverse)
	s.mux.Get("/map/config", h.mapConfig)

	s.mux.Get("/admin/poi/{mapboxID}", h.lookupPOI)
}

// ---- responses ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps service errors onto statuses. Store errors keep their own message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrNoGeometry):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("provider failure")
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// ---- query parsing ----

// coordsParam reads lat/lng. Both absent means no location.
func coordsParam(r *http.Request) (*domain.Coords, error) {
	q := r.URL.Query()
	latS, lngS := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if latS == "" && lngS == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, &domain.ValidationError{Field: "lat", Message: "lat must be a number between -90 and 90"}
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, &domain.ValidationError{Field: "lng", Message: "lng must be a number between -180 and 180"}
	}
	return &domain.Coords{Lat: lat, Lon: lng}, nil
}

// ---- cafés ----

func (h *Handlers) listCafes(w http.ResponseWriter, r *http.Request) {
	cafes, err := h.Q.ListCafes(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}

	etag, body := calcETagAndBody(cafes)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listCafes body")
	}
}

func (h *Handlers) createCafe(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := h.C.CreateCafe(r.Context(), payload)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cafe": c})
}

func (h *Handlers) nearby(w http.ResponseWriter, r *http.Request) {
	origin, err := coordsParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out, err := h.Q.Nearby(r.Context(), r.URL.Query().Get("session"), origin)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) markers(w http.ResponseWriter, r *http.Request) {
	fc, err := h.Q.Markers(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		log.Error().Err(err).Msg("failed to write markers body")
	}
}

func (h *Handlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	url, err := h.C.UploadImage(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), file)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ---- search & map ----

func (h *Handlers) suggest(w http.ResponseWriter, r *http.Request) {
	prox, err := coordsParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	out, err := h.Q.Suggest(r.Context(), q.Get("session"), q.Get("q"), prox)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (h *Handlers) retrieve(w http.ResponseWriter, r *http.Request) {
	sel, err := h.Q.Select(r.Context(), r.URL.Query().Get("session"), chi.URLParam(r, "mapboxID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *Handlers) reverse(w http.ResponseWriter, r *http.Request) {
	at, err := coordsParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if at == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	addr, err := h.Q.Locate(r.Context(), r.URL.Query().Get("session"), at.Lon, at.Lat)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (h *Handlers) mapConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Q.MapConfig())
}

// ---- admin ----

func (h *Handlers) lookupPOI(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.LookupPOI(r.Context(), chi.URLParam(r, "mapboxID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
