package wizard

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// Commercial roles sent with registrations and facilities.
const (
	roleOwner    = "owner"
	roleOperator = "operator"
	roleBoth     = "both"
)

func (e *Engine) definitions() map[Kind]*Definition {
	return map[Kind]*Definition{
		KindOperator: {
			Kind:     KindOperator,
			Initial:  StateWelcome,
			Terminal: []State{StateSuccess},
			Transitions: map[State]map[Event]Transition{
				StateWelcome:              {EventContinue: {To: StateEntityForm}},
				StateEntityForm:           {EventSubmit: e.registerCommercial(roleOperator, StateReferralCode)},
				StateReferralCode:         e.referralStep(StateTermsAgreement),
				StateTermsAgreement:       {EventAccept: e.acceptTerms(StateSignature)},
				StateSignature:            e.signatureStep(StateUtilityAuthorization),
				StateUtilityAuthorization: e.utilityStep(StateFacilityCreation),
				StateFacilityCreation:     {EventSubmit: e.createFacility(false, StateSuccess)},
			},
		},
		KindCommercialOwner: {
			Kind:     KindCommercialOwner,
			Initial:  StateWelcome,
			Terminal: []State{StateSuccess},
			Transitions: map[State]map[Event]Transition{
				StateWelcome:          {EventContinue: {To: StateEntityForm}},
				StateEntityForm:       {EventSubmit: e.registerCommercial(roleOwner, StateReferralCode)},
				StateReferralCode:     e.referralStep(StateTermsAgreement),
				StateTermsAgreement:   {EventAccept: e.acceptTerms(StateSignature)},
				StateSignature:        e.signatureStep(StateFacilityCreation),
				StateFacilityCreation: {EventSubmit: e.createFacility(false, StateSuccess)},
			},
		},
		KindCommercialBoth: {
			Kind:     KindCommercialBoth,
			Initial:  StateWelcome,
			Terminal: []State{StateSuccess},
			Transitions: map[State]map[Event]Transition{
				StateWelcome:              {EventContinue: {To: StateEntityForm}},
				StateEntityForm:           {EventSubmit: e.registerCommercial(roleBoth, StateReferralCode)},
				StateReferralCode:         e.referralStep(StateTermsAgreement),
				StateTermsAgreement:       {EventAccept: e.acceptTerms(StateSignature)},
				StateSignature:            e.signatureStep(StateFacilityCreation),
				StateFacilityCreation:     {EventSubmit: e.createFacility(false, StateUtilityAuthorization)},
				StateUtilityAuthorization: e.utilityStep(StateSuccess),
			},
		},
		KindPartner: {
			Kind:     KindPartner,
			Initial:  StateWelcome,
			Terminal: []State{StateSuccess},
			Transitions: map[State]map[Event]Transition{
				StateWelcome:        {EventContinue: {To: StateEntityForm}},
				StateEntityForm:     {EventSubmit: e.registerPartner(StateTermsAgreement)},
				StateTermsAgreement: {EventAccept: e.acceptTerms(StateSignature)},
				StateSignature:      e.signatureStep(StateSuccess),
			},
		},
		KindResidential: {
			Kind:     KindResidential,
			Initial:  StateWelcome,
			Terminal: []State{StateSuccess},
			Transitions: map[State]map[Event]Transition{
				StateWelcome:              {EventContinue: {To: StateReferralCode}},
				StateReferralCode:         e.referralStep(StateTermsAgreement),
				StateTermsAgreement:       {EventAccept: e.acceptTerms(StateSignature)},
				StateSignature:            e.signatureStep(StateUtilityAuthorization),
				StateUtilityAuthorization: e.utilityStep(StateFacilityCreation),
				StateFacilityCreation:     {EventSubmit: e.createFacility(true, StateSuccess)},
			},
		},
	}
}

func (e *Engine) registerCommercial(role string, next State) Transition {
	return Transition{
		To:    next,
		Guard: form[CommercialForm](nil),
		Action: func(ctx context.Context, r *Run) error {
			f := r.Input.(*CommercialForm)
			u, err := e.api.RegisterCommercial(ctx, r.Auth(), f.registration(role))
			if err != nil {
				return err
			}
			r.Data.CommercialRole = role
			r.Data.EntityType = f.EntityType
			if role != roleOwner {
				r.Data.OperatorID = u.ID
			}
			return e.updateSession(ctx, r, func(s *session.Session) error {
				s.EntityType = f.EntityType
				if r.Data.OperatorID != "" {
					s.OperatorID = r.Data.OperatorID
				}
				return nil
			})
		},
	}
}

func (e *Engine) registerPartner(next State) Transition {
	return Transition{
		To:    next,
		Guard: form[PartnerForm](nil),
		Action: func(ctx context.Context, r *Run) error {
			f := r.Input.(*PartnerForm)
			_, err := e.api.RegisterPartner(ctx, r.Auth(), portalapi.PartnerRegistration{
				Name:        f.Name,
				PartnerType: f.PartnerType,
				Email:       f.Email,
				Phone:       f.Phone,
				Address:     f.Address,
				ZipCode:     f.ZipCode,
			})
			if err != nil {
				return err
			}
			r.Data.EntityType = f.PartnerType
			return nil
		},
	}
}

// referralStep validates a referral code or skips it.
func (e *Engine) referralStep(next State) map[Event]Transition {
	return map[Event]Transition{
		EventSkip: {To: next},
		EventSubmit: {
			To:    next,
			Guard: form[ReferralForm](nil),
			Action: func(ctx context.Context, r *Run) error {
				f := r.Input.(*ReferralForm)
				res, raw, err := e.api.ValidateReferralCode(ctx, r.Auth(), f.Code)
				if err != nil {
					if portalapi.IsNotFound(err) {
						return validate.Field("referralCode", "is not a valid referral code")
					}
					return err
				}
				if !res.Valid {
					return validate.Field("referralCode", "is not a valid referral code")
				}
				r.Data.ReferralCode = f.Code
				r.Data.ReferralResponse = raw
				return e.updateSession(ctx, r, func(s *session.Session) error {
					s.ReferralResponse = raw
					s.OwnerReferralCode = f.Code
					return nil
				})
			},
		},
	}
}

func (e *Engine) acceptTerms(next State) Transition {
	return Transition{
		To:    next,
		Guard: form(termsGuard),
		Action: func(_ context.Context, r *Run) error {
			r.Data.TermsChecked = true
			return nil
		},
	}
}

// signatureStep uploads the signature and accepts the agreement.
func (e *Engine) signatureStep(next State) map[Event]Transition {
	return map[Event]Transition{
		EventBack: {
			To: StateTermsAgreement,
			Action: func(_ context.Context, r *Run) error {
				r.Data.TermsChecked = false
				return nil
			},
		},
		EventSign: {
			To:    next,
			Guard: form(signatureGuard),
			Action: func(ctx context.Context, r *Run) error {
				f := r.Input.(*SignatureForm)
				sig := portalapi.File{
					Name:        "signature.png",
					ContentType: mimetype.Detect(f.image).String(),
					Content:     f.image,
				}
				if err := e.api.UploadSignature(ctx, r.Auth(), sig); err != nil {
					return err
				}
				if err := e.api.AcceptAgreement(ctx, r.Auth()); err != nil {
					return err
				}
				r.Data.Signed = true
				return nil
			},
		},
	}
}

// utilityStep opens the third-party authorization portal and waits for the
// completion event the UI relays from it.
func (e *Engine) utilityStep(next State) map[Event]Transition {
	return map[Event]Transition{
		EventOpenUtilityAuth: {
			To:    StateUtilityAuthorization,
			Guard: form[UtilityAuthForm](nil),
			Action: func(_ context.Context, r *Run) error {
				f := r.Input.(*UtilityAuthForm)
				u, err := e.utility.URL(f.Mode, r.Session.Email)
				if err != nil {
					return err
				}
				r.Data.UtilityAuthMode = f.Mode
				r.Data.UtilityAuthURL = u
				return nil
			},
		},
		EventUtilityAuthComplete: {
			To: next,
			Action: func(_ context.Context, r *Run) error {
				r.Data.UtilityAuthorized = true
				return nil
			},
		},
	}
}

// createFacility submits the facility form. When the remote API rejects a
// meter ID as already registered, the meter IDs found on the user's existing
// facilities are dropped and the form is resubmitted once.
func (e *Engine) createFacility(residential bool, next State) Transition {
	create := e.api.CreateCommercialFacility
	if residential {
		create = e.api.CreateResidentialFacility
	}
	return Transition{
		To:    next,
		Guard: form[FacilityForm](nil),
		Action: func(ctx context.Context, r *Run) error {
			in := r.Input.(*FacilityForm).input(r.Data)
			f, err := create(ctx, r.Auth(), in)
			if portalapi.IsDuplicateMeter(err) {
				remaining, dropped, lerr := e.dropRegisteredMeters(ctx, r.Auth(), in.MeterIDs)
				if lerr != nil || len(dropped) == 0 || len(remaining) == 0 {
					return err
				}
				in.MeterIDs = remaining
				r.Data.DroppedMeterIDs = dropped
				f, err = create(ctx, r.Auth(), in)
			}
			if err != nil {
				return err
			}
			r.Data.FacilityID = f.ID
			return nil
		},
	}
}

func (e *Engine) dropRegisteredMeters(ctx context.Context, a portalapi.Auth, meterIDs []string) (remaining, dropped []string, err error) {
	facilities, err := e.api.ListFacilities(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	var registered []string
	for _, f := range facilities {
		registered = append(registered, f.MeterIDs...)
	}
	for _, id := range meterIDs {
		if slices.Contains(registered, id) {
			dropped = append(dropped, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	return remaining, dropped, nil
}

// UtilityAuth builds the utility authorization portal URLs.
type UtilityAuth struct {
	PortalURL string
	NewTabURL string
}

// URL returns the portal URL for mode ("inline" or "new_tab") with the
// user's email prefilled when known.
func (u UtilityAuth) URL(mode, email string) (string, error) {
	base := u.PortalURL
	if mode == "new_tab" {
		base = u.NewTabURL
	}
	if base == "" {
		return "", fmt.Errorf("utility authorization portal not configured for mode %q", mode)
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid utility authorization portal URL: %w", err)
	}
	if email != "" {
		q := parsed.Query()
		q.Set("email", email)
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), nil
}
