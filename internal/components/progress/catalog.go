package progress

import (
	"context"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/documents"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
)

// Workflow names.
const (
	OwnerOnboarding       = "owner"
	OperatorOnboarding    = "operator"
	ResidentialOnboarding = "residential"
	FacilityLifecycle     = "facility"
)

// API is the part of the remote client the stage checks read from.
type API interface {
	GetUser(ctx context.Context, a portalapi.Auth) (*portalapi.User, error)
	GetFinancialInfo(ctx context.Context, a portalapi.Auth) (*portalapi.FinancialInfoResponse, error)
	CheckAgreements(ctx context.Context, a portalapi.Auth) (*portalapi.AgreementStatus, error)
	UtilityAuthStatus(ctx context.Context, a portalapi.Auth) (portalapi.UtilityAuthorizations, error)
	ListFacilities(ctx context.Context, a portalapi.Auth) ([]portalapi.Facility, error)
	GetFacility(ctx context.Context, a portalapi.Auth, facilityID string) (*portalapi.Facility, error)
}

// Catalog holds every workflow, built over one API.
type Catalog struct {
	workflows map[string]Workflow
}

// NewCatalog builds the workflows.
func NewCatalog(api API) *Catalog {
	c := checks{api: api}
	return &Catalog{workflows: map[string]Workflow{
		OwnerOnboarding: build(OwnerOnboarding,
			stageDef{"account", "Account created", c.account},
			stageDef{"financial_info", "Financial information", c.financialInfo},
			stageDef{"agreements", "Terms and signature", c.agreements},
			stageDef{"utility_authorization", "Utility authorization", c.utilityAuth},
			stageDef{"facility_registered", "Facility registered", c.hasFacility},
			stageDef{"facility_verified", "Facility verified", c.hasVerifiedFacility},
		),
		OperatorOnboarding: build(OperatorOnboarding,
			stageDef{"account", "Account created", c.account},
			stageDef{"entity_registered", "Business information", c.entityRegistered},
			stageDef{"agreements", "Terms and signature", c.agreements},
			stageDef{"utility_authorization", "Utility authorization", c.utilityAuth},
			stageDef{"facility_registered", "Facility registered", c.hasFacility},
		),
		ResidentialOnboarding: build(ResidentialOnboarding,
			stageDef{"account", "Account created", c.account},
			stageDef{"agreements", "Terms and signature", c.agreements},
			stageDef{"utility_authorization", "Utility authorization", c.utilityAuth},
			stageDef{"facility_registered", "Solar home registered", c.hasFacility},
			stageDef{"facility_verified", "Solar home verified", c.hasVerifiedFacility},
		),
		FacilityLifecycle: build(FacilityLifecycle,
			stageDef{"created", "Facility created", c.facilityExists},
			stageDef{"documents_uploaded", "Mandatory documents uploaded", c.documentsUploaded},
			stageDef{"documents_approved", "Documents approved", c.documentsApproved},
			stageDef{"meter_linked", "Meter linked", c.meterLinked},
			stageDef{"verified", "Facility verified", c.facilityVerified},
		),
	}}
}

// Lookup returns a workflow by name.
func (c *Catalog) Lookup(name string) (Workflow, bool) {
	wf, ok := c.workflows[name]
	return wf, ok
}

// ForRole picks the onboarding workflow for a user role and entity type.
func ForRole(role, entityType string) string {
	switch {
	case role == portalapi.RoleOperator:
		return OperatorOnboarding
	case entityType == "RESIDENTIAL":
		return ResidentialOnboarding
	default:
		return OwnerOnboarding
	}
}

type stageDef struct {
	key   string
	name  string
	check Predicate
}

func build(name string, defs ...stageDef) Workflow {
	wf := Workflow{Name: name, Stages: make([]Stage, len(defs))}
	for i, d := range defs {
		wf.Stages[i] = Stage{ID: i + 1, Key: d.key, Name: d.name, Check: d.check}
	}
	return wf
}

type checks struct {
	api API
}

// notFound turns a remote 404 into a plain "not done".
func notFound(err error) (bool, error) {
	if portalapi.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c checks) account(ctx context.Context, s Subject) (bool, error) {
	u, err := c.api.GetUser(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	return u.ID != "", nil
}

func (c checks) entityRegistered(ctx context.Context, s Subject) (bool, error) {
	u, err := c.api.GetUser(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	return u.EntityType != "", nil
}

func (c checks) financialInfo(ctx context.Context, s Subject) (bool, error) {
	fi, err := c.api.GetFinancialInfo(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	return fi.HasFinancialInfo(), nil
}

func (c checks) agreements(ctx context.Context, s Subject) (bool, error) {
	st, err := c.api.CheckAgreements(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	return st.Accepted(), nil
}

func (c checks) utilityAuth(ctx context.Context, s Subject) (bool, error) {
	auths, err := c.api.UtilityAuthStatus(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	return auths.AnyAuthorized(), nil
}

func (c checks) hasFacility(ctx context.Context, s Subject) (bool, error) {
	fs, err := c.api.ListFacilities(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	return len(fs) > 0, nil
}

func (c checks) hasVerifiedFacility(ctx context.Context, s Subject) (bool, error) {
	fs, err := c.api.ListFacilities(ctx, s.Auth)
	if err != nil {
		return notFound(err)
	}
	for _, f := range fs {
		if f.IsVerified() {
			return true, nil
		}
	}
	return false, nil
}

func (c checks) facility(ctx context.Context, s Subject, test func(*portalapi.Facility) bool) (bool, error) {
	f, err := c.api.GetFacility(ctx, s.Auth, s.FacilityID)
	if err != nil {
		return notFound(err)
	}
	return test(f), nil
}

func (c checks) facilityExists(ctx context.Context, s Subject) (bool, error) {
	return c.facility(ctx, s, func(f *portalapi.Facility) bool { return f.ID != "" })
}

func (c checks) documentsUploaded(ctx context.Context, s Subject) (bool, error) {
	return c.facility(ctx, s, documents.AllMandatoryUploaded)
}

func (c checks) documentsApproved(ctx context.Context, s Subject) (bool, error) {
	return c.facility(ctx, s, documents.AllMandatoryApproved)
}

func (c checks) meterLinked(ctx context.Context, s Subject) (bool, error) {
	return c.facility(ctx, s, func(f *portalapi.Facility) bool { return len(f.MeterIDs) > 0 })
}

func (c checks) facilityVerified(ctx context.Context, s Subject) (bool, error) {
	return c.facility(ctx, s, (*portalapi.Facility).IsVerified)
}
