package documents

import (
	"encoding/json"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
)

// Merge copies the fields of document t from the upload response partial
// into f. Only t's url, status and rejection reason change. A new file has
// not been reviewed: a status absent from the response becomes PENDING and
// an absent rejection reason is cleared.
func Merge(f *portalapi.Facility, t Type, partial *portalapi.Facility) {
	if f.Fields == nil {
		f.Fields = make(map[string]json.RawMessage)
	}
	url, hasURL := partial.Fields[t.URLField]
	if hasURL {
		f.Fields[t.URLField] = url
	}
	if v, ok := partial.Fields[t.StatusField]; ok {
		f.Fields[t.StatusField] = v
	} else if hasURL {
		pending, _ := json.Marshal(string(StatusPending))
		f.Fields[t.StatusField] = pending
	}
	if v, ok := partial.Fields[t.RejectionField]; ok {
		f.Fields[t.RejectionField] = v
	} else {
		delete(f.Fields, t.RejectionField)
	}
}
