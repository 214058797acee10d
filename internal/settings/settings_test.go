package settings

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s != Defaults() || s.Theme != ThemeDark || s.FontSize != FontMedium {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	want := Settings{Theme: ThemeLight, FontSize: FontLarge}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSave_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	if err := Save(path, Settings{Theme: "neon", FontSize: FontSmall}); !errors.Is(err, ErrInvalidTheme) {
		t.Fatalf("expected ErrInvalidTheme, got %v", err)
	}
	if err := Save(path, Settings{Theme: ThemeSystem, FontSize: "huge"}); !errors.Is(err, ErrInvalidFontSize) {
		t.Fatalf("expected ErrInvalidFontSize, got %v", err)
	}
}

func TestLoad_UnknownStoredValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(stateKey, []byte(`{"theme":"neon","fontSize":"small"}`))
	})
	_ = db.Close()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Theme != ThemeDark || got.FontSize != FontSmall {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestParse(t *testing.T) {
	if th, err := ParseTheme(" Light "); err != nil || th != ThemeLight {
		t.Fatalf("ParseTheme: %v %v", th, err)
	}
	if fs, err := ParseFontSize("LARGE"); err != nil || fs != FontLarge {
		t.Fatalf("ParseFontSize: %v %v", fs, err)
	}
}
