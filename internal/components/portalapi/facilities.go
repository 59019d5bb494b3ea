package portalapi

import (
	"context"
	"net/http"
)

// ListFacilities returns the caller's facilities.
func (c *Client) ListFacilities(ctx context.Context, a Auth) ([]Facility, error) {
	var out struct {
		Facilities []Facility `json:"facilities"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/facility/get-user-facilities-by-userId/" + esc(a.UserID),
		auth:   &a,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Facilities, nil
}

// GetFacility fetches one facility.
func (c *Client) GetFacility(ctx context.Context, a Auth, facilityID string) (*Facility, error) {
	var f Facility
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/facility/" + esc(facilityID), auth: &a}, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateResidentialFacility registers a residential facility.
func (c *Client) CreateResidentialFacility(ctx context.Context, a Auth, in FacilityInput) (*Facility, error) {
	return c.createFacility(ctx, a, "/api/facility/create-residential-facility/", in)
}

// CreateCommercialFacility registers a commercial facility.
func (c *Client) CreateCommercialFacility(ctx context.Context, a Auth, in FacilityInput) (*Facility, error) {
	return c.createFacility(ctx, a, "/api/facility/create-new-facility/", in)
}

func (c *Client) createFacility(ctx context.Context, a Auth, prefix string, in FacilityInput) (*Facility, error) {
	var f Facility
	err := c.do(ctx, call{method: http.MethodPost, path: prefix + esc(a.UserID), auth: &a, body: in}, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteFacility removes a facility.
func (c *Client) DeleteFacility(ctx context.Context, a Auth, facilityID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/api/facility/" + esc(facilityID), auth: &a}, nil)
}

// UploadFacilityDocument uploads one document with a multipart PUT and
// returns the partial facility the server answers with.
func (c *Client) UploadFacilityDocument(ctx context.Context, a Auth, facilityID, endpointSuffix string, f File) (*Facility, error) {
	var out Facility
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/facility/" + endpointSuffix + "/" + esc(facilityID),
		auth:   &a,
		files:  map[string]File{"file": f},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignInstaller assigns an installer (by user ID) to a facility.
func (c *Client) AssignInstaller(ctx context.Context, a Auth, facilityID, installerID string) (*Facility, error) {
	var f Facility
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/facility/assign-installer/" + esc(facilityID),
		auth:   &a,
		body:   map[string]string{"installerId": installerID},
	}, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
