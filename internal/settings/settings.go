package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type FontSize string

const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
)

var (
	ErrInvalidTheme    = errors.New("theme must be light, dark or system")
	ErrInvalidFontSize = errors.New("font size must be small, medium or large")
)

var (
	bucketName = []byte("neta-settings")
	stateKey   = []byte("state")
)

// Settings are the user's display preferences.
type Settings struct {
	Theme    Theme    `json:"theme"`
	FontSize FontSize `json:"fontSize"`
}

func Defaults() Settings {
	return Settings{Theme: ThemeDark, FontSize: FontMedium}
}

func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	}
	return "", ErrInvalidTheme
}

func ParseFontSize(s string) (FontSize, error) {
	switch f := FontSize(strings.ToLower(strings.TrimSpace(s))); f {
	case FontSmall, FontMedium, FontLarge:
		return f, nil
	}
	return "", ErrInvalidFontSize
}

// normalize replaces unknown values with defaults.
func (s Settings) normalize() Settings {
	d := Defaults()
	if _, err := ParseTheme(string(s.Theme)); err != nil {
		s.Theme = d.Theme
	}
	if _, err := ParseFontSize(string(s.FontSize)); err != nil {
		s.FontSize = d.FontSize
	}
	return s
}

func open(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
}

// Load reads saved settings from path. A missing file, bucket or a malformed
// record yields Defaults.
func Load(path string) (Settings, error) {
	db, err := open(path)
	if err != nil {
		return Defaults(), fmt.Errorf("open settings: %w", err)
	}
	defer func() { _ = db.Close() }()

	out := Defaults()
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		v := b.Get(stateKey)
		if len(v) == 0 {
			return nil
		}
		var s Settings
		if e := json.Unmarshal(v, &s); e != nil {
			return nil
		}
		out = s.normalize()
		return nil
	})
	if err != nil {
		return Defaults(), fmt.Errorf("read settings: %w", err)
	}
	return out, nil
}

// Save validates s and writes it to path.
func Save(path string, s Settings) error {
	if _, err := ParseTheme(string(s.Theme)); err != nil {
		return err
	}
	if _, err := ParseFontSize(string(s.FontSize)); err != nil {
		return err
	}
	enc, err := json.Marshal(s)
	if err != nil {
		return err
	}

	db, err := open(path)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer func() { _ = db.Close() }()
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(stateKey, enc)
	})
}
