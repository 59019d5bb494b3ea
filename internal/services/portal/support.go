package portal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/support"
)

// createTicket handles POST /api/support/tickets. Replies are polled from
// then on until the session ends.
func (s *Service) createTicket(w http.ResponseWriter, r *http.Request) {
	var form support.TicketForm
	if !decodeJSON(w, r, &form) {
		return
	}
	sess := caller(r)
	t, err := s.deps.Support.Create(r.Context(), sess.ID, sess.Auth(), form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ticketReplies handles GET /api/support/tickets/{id}/replies. A ticket not
// yet watched in this session starts being polled.
func (s *Service) ticketReplies(w http.ResponseWriter, r *http.Request) {
	sess := caller(r)
	id := chi.URLParam(r, "id")
	thread, ok := s.deps.Support.Thread(sess.ID, id)
	if !ok {
		s.deps.Support.Watch(sess.ID, sess.Auth(), id)
		thread, _ = s.deps.Support.Thread(sess.ID, id)
	}
	thread.TicketID = id
	if thread.Replies == nil {
		thread.Replies = []portalapi.Reply{}
	}
	writeJSON(w, http.StatusOK, thread)
}
