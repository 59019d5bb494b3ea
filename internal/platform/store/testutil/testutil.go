// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
)

// TestSession creates a test session.
func TestSession() *store.Session {
	now := time.Now().Unix()
	return &store.Session{
		ID:                "sess-1",
		UserID:            "user-42",
		AuthToken:         "remote-token",
		Role:              "OPERATOR",
		EntityType:        "company",
		Email:             "ops@example.com",
		LoginResponse:     store.JSON([]byte(`{"user":{"id":"user-42"}}`)),
		OwnerReferralCode: "REF123",
		ReferralResponse:  store.JSON(nil),
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now + 3600,

		TempFinancialAgreement: store.JSON(nil),
	}
}

// TestWizard creates a test wizard instance owned by TestSession.
func TestWizard() *store.Wizard {
	now := time.Now().Unix()
	return &store.Wizard{
		ID:        "wiz-1",
		SessionID: "sess-1",
		Kind:      "operator",
		State:     "welcome",
		Data:      store.JSON([]byte(`{}`)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	t.Run("SessionCRUD", func(t *testing.T) {
		TestSessionCRUD(t, ctx, driver)
	})

	t.Run("ExpiredSessions", func(t *testing.T) {
		TestExpiredSessions(t, ctx, driver)
	})

	t.Run("WizardCRUD", func(t *testing.T) {
		TestWizardCRUD(t, ctx, driver)
	})
}

// TestSessionCRUD tests CRUD operations for sessions.
func TestSessionCRUD(t *testing.T, ctx context.Context, s store.SessionStore) {
	sess := TestSession()

	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := s.CreateSession(ctx, sess); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on duplicate, got %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.UserID != sess.UserID || got.AuthToken != sess.AuthToken {
		t.Errorf("unexpected session: %+v", got)
	}
	if !strings.Contains(string(got.LoginResponse), "user-42") {
		t.Errorf("login response not round-tripped: %s", got.LoginResponse)
	}

	sess.HasVisitedDashboard = true
	sess.OperatorID = "op-7"
	if err := s.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	got, _ = s.GetSession(ctx, sess.ID)
	if !got.HasVisitedDashboard || got.OperatorID != "op-7" {
		t.Errorf("update not persisted: %+v", got)
	}

	// clearing a flag must persist too
	sess.HasVisitedDashboard = false
	if err := s.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	got, _ = s.GetSession(ctx, sess.ID)
	if got.HasVisitedDashboard {
		t.Error("expected HasVisitedDashboard to be cleared")
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := s.GetSession(ctx, sess.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.UpdateSession(ctx, sess); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating deleted session, got %v", err)
	}
}

// TestExpiredSessions verifies only expired sessions are listed and that
// listing removes nothing.
func TestExpiredSessions(t *testing.T, ctx context.Context, s store.SessionStore) {
	now := time.Now().Unix()

	live := TestSession()
	live.ID = "live"
	expired := TestSession()
	expired.ID = "expired"
	expired.ExpiresAt = now - 10

	s.CreateSession(ctx, live)
	s.CreateSession(ctx, expired)

	ids, err := s.ListExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("ListExpiredSessions failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "expired" {
		t.Errorf("expected [expired], got %v", ids)
	}
	if _, err := s.GetSession(ctx, "expired"); err != nil {
		t.Errorf("listing should not delete: %v", err)
	}
	if _, err := s.GetSession(ctx, "live"); err != nil {
		t.Errorf("live session should remain: %v", err)
	}
	s.DeleteSession(ctx, "live")
	s.DeleteSession(ctx, "expired")
}

// TestWizardCRUD tests CRUD operations for wizard instances.
func TestWizardCRUD(t *testing.T, ctx context.Context, s store.WizardStore) {
	w := TestWizard()
	if err := s.CreateWizard(ctx, w); err != nil {
		t.Fatalf("CreateWizard failed: %v", err)
	}

	second := TestWizard()
	second.ID = "wiz-2"
	second.CreatedAt = w.CreatedAt + 1
	if err := s.CreateWizard(ctx, second); err != nil {
		t.Fatalf("CreateWizard failed: %v", err)
	}

	w.State = "referral_code"
	w.LastError = "invalid referral code"
	if err := s.UpdateWizard(ctx, w); err != nil {
		t.Fatalf("UpdateWizard failed: %v", err)
	}
	got, err := s.GetWizard(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWizard failed: %v", err)
	}
	if got.State != "referral_code" || got.LastError != "invalid referral code" {
		t.Errorf("update not persisted: %+v", got)
	}

	list, err := s.ListWizards(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListWizards failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "wiz-1" || list[1].ID != "wiz-2" {
		t.Errorf("unexpected list order: %+v", list)
	}

	if err := s.DeleteWizardsBySession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteWizardsBySession failed: %v", err)
	}
	if _, err := s.GetWizard(ctx, w.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
