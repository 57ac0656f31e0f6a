package prefs

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteDefaultWhenMissing(t *testing.T) {
	s := openTestStore(t)

	v, err := s.GetString("wifi_config", "ssid", "")
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if v != "" {
		t.Errorf("got %q, want empty default", v)
	}

	v, _ = s.GetString("wifi_config", "ssid", "fallback")
	if v != "fallback" {
		t.Errorf("got %q, want fallback", v)
	}
}

func TestSQLitePutAndGet(t *testing.T) {
	s := openTestStore(t)

	err := s.PutStrings("wifi_config", map[string]string{
		"ssid":      "HomeNet",
		"password":  "hunter22",
		"server_ip": "192.168.1.50",
	})
	if err != nil {
		t.Fatalf("PutStrings: %v", err)
	}

	for key, want := range map[string]string{"ssid": "HomeNet", "password": "hunter22", "server_ip": "192.168.1.50"} {
		got, err := s.GetString("wifi_config", key, "")
		if err != nil {
			t.Fatalf("GetString(%s): %v", key, err)
		}
		if got != want {
			t.Errorf("%s: got %q, want %q", key, got, want)
		}
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	s := openTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	s.PutStrings("wifi_config", map[string]string{"ssid": "old"})
	s.PutStrings("wifi_config", map[string]string{"ssid": "new"})

	got, _ := s.GetString("wifi_config", "ssid", "")
	if got != "new" {
		t.Errorf("got %q, want new", got)
	}
}

func TestSQLiteNamespacesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	s.PutStrings("a", map[string]string{"k": "1"})
	s.PutStrings("b", map[string]string{"k": "2"})

	a, _ := s.GetString("a", "k", "")
	b, _ := s.GetString("b", "k", "")
	if a != "1" || b != "2" {
		t.Errorf("got a=%q b=%q", a, b)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s.PutStrings("wifi_config", map[string]string{"ssid": "Persisted"})
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, _ := s2.GetString("wifi_config", "ssid", "")
	if got != "Persisted" {
		t.Errorf("got %q, want Persisted", got)
	}
}

func TestMemStoreSnapshotIsCopy(t *testing.T) {
	m := NewMemStore()
	m.PutStrings("ns", map[string]string{"k": "v"})

	snap := m.Snapshot("ns")
	snap["k"] = "changed"

	got, _ := m.GetString("ns", "k", "")
	if got != "v" {
		t.Errorf("snapshot mutation leaked into store: %q", got)
	}
	if m.Puts != 1 {
		t.Errorf("Puts: got %d, want 1", m.Puts)
	}
}
