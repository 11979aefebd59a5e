package registry

import "testing"

func TestAllowIsNoopWhenDisabled(t *testing.T) {
	s, err := Open(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !s.Allow("anything") {
		t.Fatal("expected Allow to always be true when the guard is disabled")
	}
}

func TestAllowGatesUnregisteredIdsWhenEnabled(t *testing.T) {
	s, err := Open(t.TempDir(), true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Allow("ds1") {
		t.Fatal("expected an unregistered id to be denied when the guard is enabled")
	}
	if _, err := s.Register("ds1", nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !s.Allow("ds1") {
		t.Fatal("expected a registered id to be allowed")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	s, err := Open(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register("ds1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register("ds1", nil); err == nil {
		t.Fatal("expected an error registering a duplicate id")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register("ds1", map[string]any{"owner": "team-a"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir, true)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	if !reopened.Allow("ds1") {
		t.Fatal("expected registration to survive reopen")
	}
}

func TestUnregisterRemovesEntry(t *testing.T) {
	s, err := Open(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register("ds1", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Unregister("ds1"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if s.Allow("ds1") {
		t.Fatal("expected id to be denied after unregister")
	}
}
