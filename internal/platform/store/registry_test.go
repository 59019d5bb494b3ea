package store_test

import (
	"testing"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
	_ "github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/loader"
)

func TestDriverRegistry(t *testing.T) {
	drivers := store.AvailableDrivers()

	expected := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	for _, d := range drivers {
		if !expected[d] {
			t.Logf("unexpected driver registered: %s", d)
		}
		delete(expected, d)
	}

	for d := range expected {
		t.Errorf("expected driver %q not registered", d)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "mongo"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNew_DriverConfigRequirements(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Error("sqlite without data_dir should fail")
	}
	if _, err := store.New(&store.DriverConfig{Driver: "postgres"}); err == nil {
		t.Error("postgres without dsn should fail")
	}
}
