package wizard

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// Data is what the steps of one wizard pass to each other.
type Data struct {
	CommercialRole    string          `json:"commercial_role,omitempty"`
	EntityType        string          `json:"entity_type,omitempty"`
	OperatorID        string          `json:"operator_id,omitempty"`
	ReferralCode      string          `json:"referral_code,omitempty"`
	ReferralResponse  json.RawMessage `json:"referral_response,omitempty"`
	TermsChecked      bool            `json:"terms_checked"`
	Signed            bool            `json:"signed"`
	UtilityAuthMode   string          `json:"utility_auth_mode,omitempty"`
	UtilityAuthURL    string          `json:"utility_auth_url,omitempty"`
	UtilityAuthorized bool            `json:"utility_authorized"`
	FacilityID        string          `json:"facility_id,omitempty"`
	DroppedMeterIDs   []string        `json:"dropped_meter_ids,omitempty"`
}

// CommercialForm registers a commercial owner or operator entity.
type CommercialForm struct {
	EntityType    string `json:"entityType" validate:"required,oneof=INDIVIDUAL COMPANY"`
	OwnerFullName string `json:"ownerFullName" validate:"required"`
	CompanyName   string `json:"companyName" validate:"required_if=EntityType COMPANY"`
	OwnerWebsite  string `json:"ownerWebsite" validate:"omitempty,url"`
	OwnerAddress  string `json:"ownerAddress" validate:"required"`
	OwnerZipCode  string `json:"ownerZipCode" validate:"required,zip"`
	Phone         string `json:"phoneNumber" validate:"required,phone"`
}

func (f *CommercialForm) registration(role string) portalapi.CommercialRegistration {
	return portalapi.CommercialRegistration{
		EntityType:     f.EntityType,
		CommercialRole: role,
		OwnerFullName:  f.OwnerFullName,
		OwnerWebsite:   f.OwnerWebsite,
		OwnerAddress:   f.OwnerAddress,
		OwnerZipCode:   f.OwnerZipCode,
		OwnerPhone:     f.Phone,
		CompanyName:    f.CompanyName,
	}
}

// PartnerForm registers a sales agent, installer or finance company.
type PartnerForm struct {
	Name        string `json:"name" validate:"required"`
	PartnerType string `json:"partnerType" validate:"required,oneof=SALES_AGENT INSTALLER FINANCE_COMPANY"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phoneNumber" validate:"required,phone"`
	Address     string `json:"address" validate:"required"`
	ZipCode     string `json:"zipCode" validate:"required,zip"`
}

// ReferralForm carries a referral code.
type ReferralForm struct {
	Code string `json:"referralCode" validate:"required,min=4,max=64"`
}

// TermsForm carries the agreement checkboxes.
type TermsForm struct {
	Checks []bool `json:"checks" validate:"min=1"`
}

// AllChecked reports whether every checkbox is ticked.
func (f *TermsForm) AllChecked() bool {
	for _, c := range f.Checks {
		if !c {
			return false
		}
	}
	return len(f.Checks) > 0
}

// SignatureForm carries the drawn signature as base64, optionally as a data URL.
type SignatureForm struct {
	Signature string `json:"signature" validate:"required"`

	image []byte
}

// UtilityAuthForm selects how the utility portal is opened.
type UtilityAuthForm struct {
	Mode string `json:"mode" validate:"required,oneof=inline new_tab"`
}

// FacilityForm creates a facility.
type FacilityForm struct {
	FacilityName    string   `json:"facilityName" validate:"required"`
	UtilityProvider string   `json:"utilityProvider" validate:"required"`
	MeterIDs        []string `json:"meterIds" validate:"min=1,dive,meterid"`
	Address         string   `json:"address" validate:"required"`
	ZipCode         string   `json:"zipCode" validate:"required,zip"`
	SystemCapacity  float64  `json:"systemCapacity" validate:"gt=0"`
	FinanceType     string   `json:"financeType"`
	InstallerName   string   `json:"installer"`
}

func (f *FacilityForm) input(d Data) portalapi.FacilityInput {
	return portalapi.FacilityInput{
		FacilityName:    f.FacilityName,
		UtilityProvider: f.UtilityProvider,
		MeterIDs:        append([]string(nil), f.MeterIDs...),
		Address:         f.Address,
		ZipCode:         f.ZipCode,
		SystemCapacity:  f.SystemCapacity,
		CommercialRole:  d.CommercialRole,
		EntityType:      d.EntityType,
		FinanceType:     f.FinanceType,
		InstallerName:   f.InstallerName,
	}
}

// AgreementReady reports whether the agreement can be submitted: every
// checkbox ticked and a signature present.
func AgreementReady(allChecked bool, signature []byte) bool {
	return allChecked && len(signature) > 0
}

// decodeSignature accepts raw base64 or a data URL.
func decodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, validate.Field("signature", "is not a valid data URL")
		}
		s = s[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, validate.Field("signature", "must be base64 image data")
	}
	return b, nil
}

// form returns a guard that decodes the payload into T and validates it.
func form[T any](check func(r *Run, v *T) error) func(r *Run) error {
	return func(r *Run) error {
		v := new(T)
		payload := bytes.TrimSpace(r.Payload)
		if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
			if err := json.Unmarshal(payload, v); err != nil {
				return validate.Field("payload", "must be a JSON object matching the step form")
			}
		}
		if err := validate.Struct(v); err != nil {
			return err
		}
		if check != nil {
			if err := check(r, v); err != nil {
				return err
			}
		}
		r.Input = v
		return nil
	}
}

func termsGuard(r *Run, f *TermsForm) error {
	if !f.AllChecked() {
		return validate.Field("checks", "every agreement must be accepted")
	}
	return nil
}

func signatureGuard(r *Run, f *SignatureForm) error {
	img, err := decodeSignature(f.Signature)
	if err != nil {
		return err
	}
	if !AgreementReady(r.Data.TermsChecked, img) {
		return validate.Field("checks", "every agreement must be accepted before signing")
	}
	f.image = img
	return nil
}
