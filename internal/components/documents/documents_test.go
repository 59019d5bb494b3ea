package documents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")

func facility(t *testing.T, raw string) *portalapi.Facility {
	t.Helper()
	var f portalapi.Facility
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("decode facility: %v", err)
	}
	return &f
}

func TestCatalog(t *testing.T) {
	types := Catalog()
	if len(types) != 10 {
		t.Fatalf("expected 10 document types, got %d", len(types))
	}
	seen := map[string]bool{}
	for _, ty := range types {
		for _, f := range []string{ty.URLField, ty.StatusField, ty.RejectionField, ty.EndpointSuffix} {
			if seen[f] {
				t.Errorf("field %s used twice", f)
			}
			seen[f] = true
		}
	}
	pto, ok := Lookup(PTOLetter)
	if !ok {
		t.Fatal("pto_letter missing")
	}
	if pto.EndpointSuffix != "update-facility-pto-letter" || pto.URLField != "ptoLetterUrl" || !pto.Mandatory {
		t.Errorf("unexpected pto entry %+v", pto)
	}
	if _, ok := Lookup("tax_return"); ok {
		t.Error("unknown key should not resolve")
	}
}

func TestDecode(t *testing.T) {
	f := facility(t, `{
		"id": "fac-1",
		"ptoLetterUrl": "https://files/pto.pdf",
		"ptoLetterStatus": "approved",
		"sitePlanUrl": "https://files/site.pdf",
		"singleLineDiagramUrl": "https://files/sld.pdf",
		"singleLineDiagramStatus": "REJECTED",
		"singleLineDiagramRejectionReason": "unreadable"
	}`)
	docs := Decode(f)

	if got := docs[PTOLetter].Status; got != StatusApproved {
		t.Errorf("pto status = %s, want APPROVED", got)
	}
	if got := docs[SitePlan].Status; got != StatusPending {
		t.Errorf("uploaded document without status should be PENDING, got %s", got)
	}
	if got := docs[MeterPhoto].Status; got != StatusRequired {
		t.Errorf("missing document should be REQUIRED, got %s", got)
	}
	if got := docs[SingleLineDiagram].RejectionReason; got != "unreadable" {
		t.Errorf("rejection reason = %q", got)
	}

	rejected := Rejected(f)
	if len(rejected) != 1 || rejected[0].Key != SingleLineDiagram {
		t.Errorf("Rejected() = %+v", rejected)
	}
	missing := MissingMandatory(f)
	if len(missing) != 4 {
		t.Errorf("expected 4 missing mandatory documents, got %v", missing)
	}
	if AllMandatoryUploaded(f) || AllMandatoryApproved(f) {
		t.Error("facility should not pass mandatory checks")
	}
}

func TestAllMandatoryApproved(t *testing.T) {
	fields := map[string]any{}
	for _, ty := range Catalog() {
		if ty.Mandatory {
			fields[ty.URLField] = "https://files/" + string(ty.Key)
			fields[ty.StatusField] = "APPROVED"
		}
	}
	raw, _ := json.Marshal(fields)
	f := facility(t, string(raw))
	if !AllMandatoryUploaded(f) || !AllMandatoryApproved(f) {
		t.Error("all mandatory documents are approved")
	}
}

func TestMerge_OnlyTouchesUploadedDocument(t *testing.T) {
	f := facility(t, `{
		"id": "fac-1",
		"facilityName": "Roof A",
		"ptoLetterUrl": "https://files/old-pto.pdf",
		"ptoLetterStatus": "REJECTED",
		"ptoLetterRejectionReason": "expired",
		"sitePlanUrl": "https://files/site.pdf",
		"sitePlanStatus": "APPROVED"
	}`)
	before := Decode(f)

	partial := facility(t, `{"id":"fac-1","ptoLetterUrl":"https://files/new-pto.pdf","ptoLetterStatus":"PENDING"}`)
	pto, _ := Lookup(PTOLetter)
	Merge(f, pto, partial)

	after := Decode(f)
	if got := after[PTOLetter]; got.URL != "https://files/new-pto.pdf" || got.Status != StatusPending || got.RejectionReason != "" {
		t.Errorf("pto after merge = %+v", got)
	}
	for key, st := range before {
		if key == PTOLetter {
			continue
		}
		if after[key] != st {
			t.Errorf("%s changed: %+v -> %+v", key, st, after[key])
		}
	}
	if f.FacilityName != "Roof A" {
		t.Errorf("facility name changed to %q", f.FacilityName)
	}
}

func TestMerge_NewFileWithoutStatusIsPending(t *testing.T) {
	f := facility(t, `{
		"id": "fac-1",
		"ptoLetterUrl": "https://files/old-pto.pdf",
		"ptoLetterStatus": "REJECTED",
		"ptoLetterRejectionReason": "illegible"
	}`)

	partial := facility(t, `{"id":"fac-1","ptoLetterUrl":"https://files/new-pto.pdf"}`)
	pto, _ := Lookup(PTOLetter)
	Merge(f, pto, partial)

	got := Decode(f)[PTOLetter]
	if got.URL != "https://files/new-pto.pdf" {
		t.Errorf("url = %q", got.URL)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want %q", got.Status, StatusPending)
	}
	if got.RejectionReason != "" {
		t.Errorf("rejection reason should be cleared, got %q", got.RejectionReason)
	}
}

func TestMerge_NoURLKeepsStatus(t *testing.T) {
	f := facility(t, `{"id":"fac-1","ptoLetterUrl":"https://files/pto.pdf","ptoLetterStatus":"APPROVED"}`)

	pto, _ := Lookup(PTOLetter)
	Merge(f, pto, facility(t, `{"id":"fac-1"}`))

	if got := Decode(f)[PTOLetter]; got.Status != StatusApproved {
		t.Errorf("status = %q, want %q", got.Status, StatusApproved)
	}
}

type fakeAPI struct {
	facility *portalapi.Facility
	partial  *portalapi.Facility
	uploads  []string
	upErr    error
	gotFile  portalapi.File
}

func (f *fakeAPI) GetFacility(_ context.Context, _ portalapi.Auth, _ string) (*portalapi.Facility, error) {
	cp := *f.facility
	return &cp, nil
}

func (f *fakeAPI) UploadFacilityDocument(_ context.Context, _ portalapi.Auth, facilityID, suffix string, file portalapi.File) (*portalapi.Facility, error) {
	f.uploads = append(f.uploads, suffix+"/"+facilityID)
	f.gotFile = file
	if f.upErr != nil {
		return nil, f.upErr
	}
	return f.partial, nil
}

type recordingInvalidator struct{ users []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

func TestUploader_Upload(t *testing.T) {
	api := &fakeAPI{
		facility: facility(t, `{"id":"fac-1","sitePlanUrl":"https://files/site.pdf"}`),
		partial:  facility(t, `{"id":"fac-1","meterPhotoUrl":"https://files/meter.pdf","meterPhotoStatus":"PENDING"}`),
	}
	inv := &recordingInvalidator{}
	u := NewUploader(api, inv, 0, nil)
	auth := portalapi.Auth{Token: "tok", UserID: "user-1"}

	got, err := u.Upload(context.Background(), auth, "fac-1", MeterPhoto, "meter.pdf", pdf)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(api.uploads) != 1 || api.uploads[0] != "update-facility-meter-photo/fac-1" {
		t.Errorf("unexpected uploads %v", api.uploads)
	}
	if api.gotFile.ContentType != "application/pdf" {
		t.Errorf("content type = %q", api.gotFile.ContentType)
	}
	docs := Decode(got)
	if docs[MeterPhoto].Status != StatusPending || docs[SitePlan].URL != "https://files/site.pdf" {
		t.Errorf("unexpected merged state %+v", docs)
	}
	if len(inv.users) != 1 || inv.users[0] != "user-1" {
		t.Errorf("progress not invalidated: %v", inv.users)
	}
}

func TestUploader_RejectsBeforeSending(t *testing.T) {
	api := &fakeAPI{facility: facility(t, `{"id":"fac-1"}`)}
	u := NewUploader(api, nil, 64, nil)
	auth := portalapi.Auth{Token: "tok", UserID: "user-1"}

	tests := []struct {
		name    string
		key     Key
		content []byte
		want    error
	}{
		{"unknown key", "tax_return", pdf, ErrUnknownDocument},
		{"empty", PTOLetter, nil, ErrEmptyFile},
		{"text file", PTOLetter, []byte("just some notes"), ErrUnsupportedType},
		{"too large", PTOLetter, append(append([]byte{}, pdf...), make([]byte, 64)...), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.Upload(context.Background(), auth, "fac-1", tt.key, "f", tt.content)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !validate.IsValidation(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
	if len(api.uploads) != 0 {
		t.Errorf("nothing should be sent, got %v", api.uploads)
	}
}

func TestUploader_UploadFailureIsReturned(t *testing.T) {
	api := &fakeAPI{
		facility: facility(t, `{"id":"fac-1"}`),
		upErr:    &portalapi.APIError{StatusCode: 500, Message: "storage down"},
	}
	inv := &recordingInvalidator{}
	u := NewUploader(api, inv, 0, nil)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	_, err := u.Upload(context.Background(), portalapi.Auth{UserID: "u"}, "fac-1", MeterPhoto, "m.png", png)
	var apiErr *portalapi.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Fatalf("expected APIError, got %v", err)
	}
	if api.gotFile.ContentType != "image/png" {
		t.Errorf("content type = %q", api.gotFile.ContentType)
	}
	if len(inv.users) != 0 {
		t.Error("failed upload should not invalidate progress")
	}
}
