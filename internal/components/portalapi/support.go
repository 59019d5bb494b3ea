package portalapi

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// CreateTicket opens a support ticket on the legacy host.
func (c *Client) CreateTicket(ctx context.Context, a Auth, req TicketRequest) (*Ticket, error) {
	var t Ticket
	err := c.do(ctx, call{
		method: http.MethodPost,
		legacy: true,
		path:   "/api/contact-support/" + esc(a.UserID),
		auth:   &a,
		body:   req,
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TicketReplies lists replies to a ticket, newer than since when non-zero.
func (c *Client) TicketReplies(ctx context.Context, a Auth, ticketID string, since time.Time) ([]Reply, error) {
	var q url.Values
	if !since.IsZero() {
		q = url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	}
	var replies []Reply
	err := c.do(ctx, call{
		method: http.MethodGet,
		legacy: true,
		path:   "/api/contact-support/" + esc(ticketID) + "/replies",
		query:  q,
		auth:   &a,
	}, &replies)
	if err != nil {
		return nil, err
	}
	return replies, nil
}
