package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// API is the part of the remote client reports read from.
type API interface {
	CustomerReport(ctx context.Context, a portalapi.Auth, q portalapi.ReportQuery) (*portalapi.Page[portalapi.CustomerReportRow], error)
	GenerationReport(ctx context.Context, a portalapi.Auth, q portalapi.ReportQuery) (*portalapi.Page[portalapi.GenerationReportRow], error)
	CommissionStatement(ctx context.Context, a portalapi.Auth, q portalapi.ReportQuery) (*portalapi.Page[portalapi.CommissionStatementRow], error)
	RECStatement(ctx context.Context, a portalapi.Auth, q portalapi.ReportQuery) (*portalapi.Page[portalapi.RECStatementRow], error)
	DeliverReport(ctx context.Context, a portalapi.Auth, kind string, d portalapi.ReportDelivery) (*portalapi.ReportDocument, error)
}

// Query selects one page of a report.
type Query struct {
	Period Period
	Page   int
	Limit  int
	Search string
}

// Result is one page of a report as a table.
type Result struct {
	Kind       Kind   `json:"kind"`
	Period     Period `json:"period"`
	Table      Table  `json:"table"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
}

// Service loads report pages. Statements of closed periods do not change,
// so their pages are cached.
type Service struct {
	api    API
	cache  cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a report service. c may be nil.
func NewService(api API, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{api: api, cache: c, logger: logutil.NoopIfNil(logger), now: time.Now}
}

func pageOf[T any](p *portalapi.Page[T], build func([]T) Table) (Table, int, int, int, int) {
	return build(p.Items), p.Page, p.Limit, p.Total, p.TotalPages
}

// Fetch loads one page of a report.
func (s *Service) Fetch(ctx context.Context, a portalapi.Auth, kind Kind, q Query) (*Result, error) {
	if err := q.Period.Validate(); err != nil {
		return nil, err
	}
	if kind == KindRECStatement && q.Period.Year == 0 {
		return nil, validate.Field("year", "is required for the REC statement")
	}

	key := fmt.Sprintf("report:%s:%s:%s:%d:%d:%s", kind, a.UserID, q.Period, q.Page, q.Limit, q.Search)
	cacheable := s.cache != nil && kind.IsStatement() && q.Period.Closed(s.now())
	if cacheable {
		if b, err := s.cache.Get(ctx, key); err == nil {
			var res Result
			if json.Unmarshal(b, &res) == nil {
				return &res, nil
			}
		} else if !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
			s.logger.Warn("report cache read failed", "error", err)
		}
	}

	rq := portalapi.ReportQuery{Page: q.Page, Limit: q.Limit, Year: q.Period.Year, Quarter: q.Period.Quarter, Search: q.Search}
	res := &Result{Kind: kind, Period: q.Period}
	var err error
	switch kind {
	case KindCustomers:
		var p *portalapi.Page[portalapi.CustomerReportRow]
		if p, err = s.api.CustomerReport(ctx, a, rq); err == nil {
			res.Table, res.Page, res.Limit, res.Total, res.TotalPages = pageOf(p, CustomerTable)
		}
	case KindGeneration:
		var p *portalapi.Page[portalapi.GenerationReportRow]
		if p, err = s.api.GenerationReport(ctx, a, rq); err == nil {
			res.Table, res.Page, res.Limit, res.Total, res.TotalPages = pageOf(p, GenerationTable)
		}
	case KindCommissionStatement:
		var p *portalapi.Page[portalapi.CommissionStatementRow]
		if p, err = s.api.CommissionStatement(ctx, a, rq); err == nil {
			res.Table, res.Page, res.Limit, res.Total, res.TotalPages = pageOf(p, CommissionTable)
		}
	case KindRECStatement:
		var p *portalapi.Page[portalapi.RECStatementRow]
		if p, err = s.api.RECStatement(ctx, a, rq); err == nil {
			res.Table, res.Page, res.Limit, res.Total, res.TotalPages = pageOf(p, RECTable)
		}
	default:
		return nil, validate.Field("kind", "is not a known report")
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		if b, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(ctx, key, b, cache.TTLStatement); err != nil {
				s.logger.Warn("report cache write failed", "error", err)
			}
		}
	}
	return res, nil
}

// Deliver asks the backend to render the report as PDF, or to email it when
// email is set.
func (s *Service) Deliver(ctx context.Context, a portalapi.Auth, kind Kind, p Period, email string) (*portalapi.ReportDocument, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d := portalapi.ReportDelivery{Format: string(FormatPDF), Year: p.Year, Quarter: p.Quarter}
	if email != "" {
		if !validate.Email(email) {
			return nil, validate.Field("email", "must be a valid email address")
		}
		d.Format = "email"
		d.Email = email
	}
	doc, err := s.api.DeliverReport(ctx, a, string(kind), d)
	if err != nil {
		return nil, err
	}
	logutil.Ctx(ctx).Info("report delivery requested", "kind", kind, "format", d.Format, "period", p.String())
	return doc, nil
}
