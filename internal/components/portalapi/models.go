package portalapi

import (
	"encoding/json"
	"strings"
	"time"
)

// User roles as reported by the remote API.
const (
	RoleOwner          = "OWNER"
	RoleOperator       = "OPERATOR"
	RoleBoth           = "BOTH"
	RoleSalesAgent     = "SALES_AGENT"
	RoleInstaller      = "INSTALLER"
	RoleFinanceCompany = "FINANCE_COMPANY"
)

// User is a portal account.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Phone         string `json:"phoneNumber"`
	Role          string `json:"role"`
	EntityType    string `json:"userType"`
	ReferralCode  string `json:"referralCode"`
	TermsAccepted bool   `json:"termsAccepted"`
}

// LoginResult is the data member of a successful login.
type LoginResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// AgreementStatus is the check-agreements answer.
type AgreementStatus struct {
	TermsAccepted bool   `json:"termsAccepted"`
	Signature     string `json:"signature"`
	AcceptedAt    string `json:"acceptedAt,omitempty"`
}

// Accepted reports whether the terms were accepted and signed.
func (a AgreementStatus) Accepted() bool {
	return a.TermsAccepted && a.Signature != ""
}

// FinancialInfoResponse wraps the financial-info record, which is null until submitted.
type FinancialInfoResponse struct {
	FinancialInfo json.RawMessage `json:"financialInfo"`
}

// HasFinancialInfo reports whether a record exists.
func (f FinancialInfoResponse) HasFinancialInfo() bool {
	s := strings.TrimSpace(string(f.FinancialInfo))
	return s != "" && s != "null"
}

// FinancialInfo is submitted by owners during onboarding.
type FinancialInfo struct {
	FinanceType    string `json:"financeType"`
	FinanceCompany string `json:"financeCompany,omitempty"`
	InstallerName  string `json:"installer,omitempty"`
	SystemSize     string `json:"systemSize,omitempty"`
	CODDate        string `json:"cod,omitempty"`
}

// CommercialRegistration is the commercial entity form.
type CommercialRegistration struct {
	EntityType     string `json:"entityType"`
	CommercialRole string `json:"commercialRole"`
	OwnerFullName  string `json:"ownerFullName"`
	OwnerWebsite   string `json:"ownerWebsite,omitempty"`
	OwnerAddress   string `json:"ownerAddress"`
	OwnerZipCode   string `json:"ownerZipCode"`
	OwnerPhone     string `json:"phoneNumber"`
	CompanyName    string `json:"companyName,omitempty"`
}

// PartnerRegistration is the partner (sales agent, installer, finance company) form.
type PartnerRegistration struct {
	Name        string `json:"name"`
	PartnerType string `json:"partnerType"`
	Email       string `json:"email"`
	Phone       string `json:"phoneNumber"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

// ReferralValidation is the answer for a referral code.
type ReferralValidation struct {
	ReferralCode string `json:"referralCode"`
	InviterID    string `json:"inviterId"`
	Role         string `json:"role"`
	Valid        bool   `json:"valid"`
}

// UtilityAuthorization is one utility account the user authorized.
type UtilityAuthorization struct {
	ID          string `json:"id"`
	UtilityName string `json:"utilityName"`
	Status      string `json:"status"`
}

// UtilityAuthorizations is the utility-auth status list.
type UtilityAuthorizations []UtilityAuthorization

// AnyAuthorized reports whether at least one authorization went through.
func (u UtilityAuthorizations) AnyAuthorized() bool {
	for _, a := range u {
		switch strings.ToUpper(a.Status) {
		case "AUTHORIZED", "COMPLETED", "ACTIVE":
			return true
		}
	}
	return false
}

// Facility statuses seen from the remote API.
const (
	FacilityPending  = "PENDING"
	FacilityActive   = "ACTIVE"
	FacilityVerified = "VERIFIED"
)

// Facility is a registered solar installation. Per-document fields are
// parallel members of the same object and are kept in Fields, keyed by their
// JSON name, together with every other member.
type Facility struct {
	ID              string   `json:"id"`
	UserID          string   `json:"userId"`
	FacilityName    string   `json:"facilityName"`
	FacilityType    string   `json:"facilityType"`
	UtilityProvider string   `json:"utilityProvider"`
	MeterIDs        []string `json:"meterIds"`
	Address         string   `json:"address"`
	ZipCode         string   `json:"zipCode"`
	SystemCapacity  float64  `json:"systemCapacity"`
	Status          string   `json:"status"`
	InstallerID     string   `json:"installerId"`

	Fields map[string]json.RawMessage `json:"-"`
}

type facilityAlias Facility

// UnmarshalJSON decodes the typed members and keeps every member in Fields.
func (f *Facility) UnmarshalJSON(b []byte) error {
	var a facilityAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*f = Facility(a)
	f.Fields = fields
	return nil
}

// MarshalJSON writes Fields overlaid with the typed members.
func (f Facility) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(facilityAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Fields) == 0 {
		return typed, nil
	}
	out := make(map[string]json.RawMessage, len(f.Fields)+11)
	for k, v := range f.Fields {
		out[k] = v
	}
	var typedFields map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedFields); err != nil {
		return nil, err
	}
	for k, v := range typedFields {
		out[k] = v
	}
	return json.Marshal(out)
}

// String returns the string value of a raw member, "" when absent or not a string.
func (f Facility) String(field string) string {
	raw, ok := f.Fields[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// IsVerified reports whether the facility finished verification.
func (f Facility) IsVerified() bool {
	switch strings.ToUpper(f.Status) {
	case FacilityVerified, FacilityActive:
		return true
	}
	return false
}

// FacilityInput creates a residential or commercial facility.
type FacilityInput struct {
	FacilityName    string   `json:"facilityName"`
	UtilityProvider string   `json:"utilityProvider"`
	MeterIDs        []string `json:"meterIds"`
	Address         string   `json:"address"`
	ZipCode         string   `json:"zipCode"`
	SystemCapacity  float64  `json:"systemCapacity"`
	CommercialRole  string   `json:"commercialRole,omitempty"`
	EntityType      string   `json:"entityType,omitempty"`
	FinanceType     string   `json:"financeType,omitempty"`
	InstallerName   string   `json:"installer,omitempty"`
}

// Invitation statuses.
const (
	InvitationPending    = "PENDING"
	InvitationAccepted   = "ACCEPTED"
	InvitationTerminated = "TERMINATED"
)

// Invitation is a referral sent by one user to another.
type Invitation struct {
	ReferralCode string    `json:"referralCode"`
	InviterID    string    `json:"inviterId"`
	InviteeEmail string    `json:"inviteeEmail"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Mode         string    `json:"mode,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// InvitationRequest sends one invitation.
type InvitationRequest struct {
	InviteeEmail string `json:"inviteeEmail"`
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phoneNumber,omitempty"`
	Role         string `json:"role"`
	Mode         string `json:"mode,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Page is a paginated list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ReportQuery selects a page of a report.
type ReportQuery struct {
	Page    int
	Limit   int
	Year    int
	Quarter int
	Search  string
}

// CustomerReportRow is one customer in the customer report.
type CustomerReportRow struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	Facilities int       `json:"facilities"`
	JoinedAt   time.Time `json:"createdAt"`
}

// GenerationReportRow is one facility-period in the generation report.
type GenerationReportRow struct {
	FacilityName string  `json:"facilityName"`
	MeterID      string  `json:"meterId"`
	Period       string  `json:"period"`
	GeneratedKWh float64 `json:"generatedKwh"`
	RECs         float64 `json:"recs"`
}

// CommissionStatementRow is one line of a commission statement.
type CommissionStatementRow struct {
	Period         string  `json:"period"`
	FacilityName   string  `json:"facilityName"`
	RECsSold       float64 `json:"recsSold"`
	Revenue        float64 `json:"revenue"`
	CommissionRate float64 `json:"commissionRate"`
	Commission     float64 `json:"commission"`
}

// RECStatementRow is one line of a quarterly REC statement.
type RECStatementRow struct {
	FacilityName  string  `json:"facilityName"`
	Year          int     `json:"year"`
	Quarter       int     `json:"quarter"`
	RECsGenerated float64 `json:"recsGenerated"`
	RECsSold      float64 `json:"recsSold"`
	AveragePrice  float64 `json:"averagePrice"`
	Revenue       float64 `json:"revenue"`
}

// ReportDelivery asks the backend to render a report and deliver it.
type ReportDelivery struct {
	Format  string `json:"format"`
	Email   string `json:"email,omitempty"`
	Year    int    `json:"year,omitempty"`
	Quarter int    `json:"quarter,omitempty"`
}

// ReportDocument is a backend-rendered report.
type ReportDocument struct {
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// PointsBalance is the user's points account.
type PointsBalance struct {
	Available      int64   `json:"availablePoints"`
	Total          int64   `json:"totalPoints"`
	Redeemed       int64   `json:"redeemedPoints"`
	CommissionRate float64 `json:"commissionRate"`
}

// RedeemRequest redeems points for cash.
type RedeemRequest struct {
	Points      int64 `json:"points"`
	AmountCents int64 `json:"amountCents"`
}

// Redemption is a recorded redemption.
type Redemption struct {
	ID          string    `json:"id"`
	Points      int64     `json:"points"`
	AmountCents int64     `json:"amountCents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TicketRequest opens a support ticket.
type TicketRequest struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// Ticket is a support ticket.
type Ticket struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply is one support reply.
type Reply struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
