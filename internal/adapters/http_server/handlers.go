// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reviewradar/internal/adapters/gmb"
	"reviewradar/internal/app"
	"reviewradar/internal/domain"
)

type Handlers struct {
	Q       *app.QueryService
	Sync    *app.SyncService
	Replies *app.ReplyService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/sync", h.runSync)
	s.mux.Get("/v1/reviews", h.listReviews)
	s.mux.Get("/v1/reviews/{id}", h.getReview)
	s.mux.Post("/v1/reviews/{id}/reply", h.reply)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

func (h *Handlers) runSync(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Sync.Run(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSyncInFlight):
			writeProblem(w, http.StatusConflict, "Sync In Progress", "another sync run holds the lock")
		case errors.Is(err, domain.ErrNoCredential):
			writeProblem(w, http.StatusFailedDependency, "No Credential", "no Google credential is stored")
		case errors.Is(err, domain.ErrNoAccount), errors.Is(err, domain.ErrNoLocation):
			writeProblem(w, http.StatusBadGateway, "Discovery Failed", err.Error())
		default:
			var fe *gmb.FetchError
			if errors.As(err, &fe) {
				writeProblem(w, http.StatusBadGateway, "Upstream Error", fe.Error())
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Sync Failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	unanswered := r.URL.Query().Get("unanswered") == "true"

	out, err := h.Q.ListReviews(r.Context(), domain.ReviewsQuery{Limit: limit, Unanswered: unanswered})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Query Failed", "could not list reviews")
		return
	}

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listReviews body")
	}
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.Q.GetReview(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "review not found")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Query Failed", "could not load review")
		return
	}

	etag, body := calcETagAndBody(resp)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getReview body")
	}
}

type replyRequest struct {
	Comment string `json:"comment"`
	Send    bool   `json:"send"`
}

// reply drafts or sends a business reply. With send=false (default) and
// no comment, an AI draft is generated and stored; with send=true the
// comment (or the stored draft) is delivered upstream.
func (h *Handlers) reply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "body must be JSON")
		return
	}

	var (
		rp  domain.Reply
		err error
	)
	if req.Send {
		rp, err = h.Replies.Send(r.Context(), id, req.Comment)
	} else if req.Comment == "" {
		rp, err = h.Replies.Draft(r.Context(), id)
	} else {
		rp = domain.Reply{ReviewID: id, Comment: req.Comment}
		err = h.Replies.SaveDraft(r.Context(), rp)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "review not found")
			return
		}
		writeProblem(w, http.StatusBadGateway, "Reply Failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rp)
}
