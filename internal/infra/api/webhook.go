package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"photobridge/internal/domain"
	"photobridge/internal/infra/logging"
	"photobridge/internal/usecase"

	"github.com/rs/zerolog"
)

const (
	respMissingID = "Missing id_gen"
	respUnknownID = "Unknown id_gen (ignored)"
)

type webhookHandler struct {
	callbacks usecase.CallbackUseCase
	log       *zerolog.Logger
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), h.log)

	p, err := decodePayload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeText(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		l.Warn().Err(err).Msg("webhook body rejected")
		writeText(w, http.StatusBadRequest, "invalid body")
		return
	}

	outcome, err := h.callbacks.Handle(r.Context(), p)
	switch {
	case errors.Is(err, domain.ErrMalformedCallback):
		writeText(w, http.StatusBadRequest, respMissingID)
	case err != nil:
		l.Error().Err(err).Msg("webhook handling failed")
		writeText(w, http.StatusInternalServerError, "error")
	case outcome == usecase.OutcomeUnknownJob:
		writeText(w, http.StatusOK, respUnknownID)
	default:
		writeText(w, http.StatusOK, "ok")
	}
}

// decodePayload reads a JSON object or a url-encoded/multipart form. Query
// parameters fill in any field the body did not carry, which is how an id
// embedded in the callback URL reaches the use case.
func decodePayload(r *http.Request) (usecase.Payload, error) {
	p := usecase.Payload{}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch ct {
	case "application/json":
		dec := json.NewDecoder(r.Body)
		var body map[string]any
		if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		for k, v := range body {
			p[k] = v
		}
	case "multipart/form-data":
		// Files stay on disk or in memory until the request ends; only values are read.
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			return nil, err
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		mergeValues(p, r.MultipartForm.Value)
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		mergeValues(p, r.PostForm)
	}

	mergeValues(p, r.URL.Query())
	return p, nil
}

func mergeValues(p usecase.Payload, vals url.Values) {
	for k, v := range vals {
		if _, exists := p[k]; exists || len(v) == 0 {
			continue
		}
		p[k] = v
	}
}
