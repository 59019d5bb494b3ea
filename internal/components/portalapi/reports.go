package portalapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (q ReportQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Year > 0 {
		v.Set("year", strconv.Itoa(q.Year))
	}
	if q.Quarter > 0 {
		v.Set("quarter", strconv.Itoa(q.Quarter))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

func getPage[T any](ctx context.Context, c *Client, a Auth, path string, q ReportQuery) (*Page[T], error) {
	var p Page[T]
	err := c.do(ctx, call{method: http.MethodGet, path: path, query: q.values(), auth: &a}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CustomerReport returns one page of the customer report.
func (c *Client) CustomerReport(ctx context.Context, a Auth, q ReportQuery) (*Page[CustomerReportRow], error) {
	return getPage[CustomerReportRow](ctx, c, a, "/api/reports/customers/"+esc(a.UserID), q)
}

// GenerationReport returns one page of the generation report.
func (c *Client) GenerationReport(ctx context.Context, a Auth, q ReportQuery) (*Page[GenerationReportRow], error) {
	return getPage[GenerationReportRow](ctx, c, a, "/api/reports/generation/"+esc(a.UserID), q)
}

// CommissionStatement returns one page of the commission statement.
func (c *Client) CommissionStatement(ctx context.Context, a Auth, q ReportQuery) (*Page[CommissionStatementRow], error) {
	return getPage[CommissionStatementRow](ctx, c, a, "/api/reports/commission-statement/"+esc(a.UserID), q)
}

// RECStatement returns one page of the quarterly REC statement.
func (c *Client) RECStatement(ctx context.Context, a Auth, q ReportQuery) (*Page[RECStatementRow], error) {
	return getPage[RECStatementRow](ctx, c, a, "/api/reports/rec-statement/"+esc(a.UserID), q)
}

// DeliverReport asks the backend to render a report (PDF) or email it.
func (c *Client) DeliverReport(ctx context.Context, a Auth, kind string, d ReportDelivery) (*ReportDocument, error) {
	var doc ReportDocument
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/reports/" + esc(kind) + "/deliver/" + esc(a.UserID),
		auth:   &a,
		body:   d,
	}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
