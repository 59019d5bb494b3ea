// Package documents describes the per-facility document catalog and
// uploads documents one at a time.
//
// A document is not a row of its own: each type is a triple of parallel
// fields on the facility (url, status, rejection reason). The catalog names
// those fields so the rest of the portal never spells them out.
package documents

import (
	"strings"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
)

// Key identifies a document type.
type Key string

const (
	WREGISAssignment         Key = "wregis_assignment"
	FinanceAgreement         Key = "finance_agreement"
	InstallationContract     Key = "installation_contract"
	InterconnectionAgreement Key = "interconnection_agreement"
	PTOLetter                Key = "pto_letter"
	SingleLineDiagram        Key = "single_line_diagram"
	SitePlan                 Key = "site_plan"
	PanelDatasheet           Key = "panel_datasheet"
	InverterDatasheet        Key = "inverter_datasheet"
	MeterPhoto               Key = "meter_photo"
)

// Status of one document.
type Status string

const (
	StatusRequired Status = "REQUIRED"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Type is a catalog entry.
type Type struct {
	Key            Key    `json:"key"`
	Label          string `json:"label"`
	EndpointSuffix string `json:"endpoint_suffix"`
	URLField       string `json:"url_field"`
	StatusField    string `json:"status_field"`
	RejectionField string `json:"rejection_field"`
	Mandatory      bool   `json:"mandatory"`
}

func entry(key Key, label, field, suffix string, mandatory bool) Type {
	return Type{
		Key:            key,
		Label:          label,
		EndpointSuffix: "update-facility-" + suffix,
		URLField:       field + "Url",
		StatusField:    field + "Status",
		RejectionField: field + "RejectionReason",
		Mandatory:      mandatory,
	}
}

var catalog = []Type{
	entry(WREGISAssignment, "WREGIS Assignment of Registration Rights", "wregisAssignment", "wregis-assignment", true),
	entry(FinanceAgreement, "Finance Agreement / PPA", "financeAgreement", "finance-agreement", true),
	entry(InstallationContract, "Solar Installation Contract", "solarInstallationContract", "installation-contract", true),
	entry(InterconnectionAgreement, "Utility Interconnection Agreement", "interconnectionAgreement", "interconnection-agreement", true),
	entry(PTOLetter, "Utility PTO Letter", "ptoLetter", "pto-letter", true),
	entry(SingleLineDiagram, "Single Line Diagram", "singleLineDiagram", "single-line-diagram", true),
	entry(SitePlan, "Site Plan", "sitePlan", "site-plan", false),
	entry(PanelDatasheet, "Panel Datasheet", "panelDatasheet", "panel-datasheet", false),
	entry(InverterDatasheet, "Inverter Datasheet", "inverterDatasheet", "inverter-datasheet", false),
	entry(MeterPhoto, "Revenue Meter Photo", "meterPhoto", "meter-photo", false),
}

var byKey = func() map[Key]Type {
	m := make(map[Key]Type, len(catalog))
	for _, t := range catalog {
		m[t.Key] = t
	}
	return m
}()

// Catalog returns every document type in display order.
func Catalog() []Type {
	out := make([]Type, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for key.
func Lookup(key Key) (Type, bool) {
	t, ok := byKey[key]
	return t, ok
}

// State is the decoded state of one document on a facility.
type State struct {
	Key             Key    `json:"key"`
	Label           string `json:"label"`
	Mandatory       bool   `json:"mandatory"`
	URL             string `json:"url,omitempty"`
	Status          Status `json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// Uploaded reports whether a file is on record.
func (s State) Uploaded() bool { return s.URL != "" }

// StateOf decodes the document fields of one type from f. A document with
// no URL and no status is REQUIRED; an uploaded one with no status is PENDING.
func StateOf(f *portalapi.Facility, t Type) State {
	st := State{
		Key:             t.Key,
		Label:           t.Label,
		Mandatory:       t.Mandatory,
		URL:             f.String(t.URLField),
		Status:          Status(strings.ToUpper(f.String(t.StatusField))),
		RejectionReason: f.String(t.RejectionField),
	}
	switch st.Status {
	case StatusPending, StatusApproved, StatusRejected:
	case StatusRequired:
		if st.URL != "" {
			st.Status = StatusPending
		}
	default:
		if st.URL == "" {
			st.Status = StatusRequired
		} else {
			st.Status = StatusPending
		}
	}
	return st
}

// Decode returns the state of every catalog document on f.
func Decode(f *portalapi.Facility) map[Key]State {
	out := make(map[Key]State, len(catalog))
	for _, t := range catalog {
		out[t.Key] = StateOf(f, t)
	}
	return out
}

// List returns the states of every catalog document on f in display order.
func List(f *portalapi.Facility) []State {
	out := make([]State, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, StateOf(f, t))
	}
	return out
}

// MissingMandatory returns the mandatory documents with no file on record.
func MissingMandatory(f *portalapi.Facility) []Key {
	var out []Key
	for _, t := range catalog {
		if t.Mandatory && !StateOf(f, t).Uploaded() {
			out = append(out, t.Key)
		}
	}
	return out
}

// AllMandatoryUploaded reports whether every mandatory document has a file.
func AllMandatoryUploaded(f *portalapi.Facility) bool {
	return len(MissingMandatory(f)) == 0
}

// AllMandatoryApproved reports whether every mandatory document is approved.
func AllMandatoryApproved(f *portalapi.Facility) bool {
	for _, t := range catalog {
		if t.Mandatory && StateOf(f, t).Status != StatusApproved {
			return false
		}
	}
	return true
}

// Rejected returns the rejected documents.
func Rejected(f *portalapi.Facility) []State {
	var out []State
	for _, t := range catalog {
		if st := StateOf(f, t); st.Status == StatusRejected {
			out = append(out, st)
		}
	}
	return out
}
