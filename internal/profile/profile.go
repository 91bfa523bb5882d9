// Package profile discovers and validates Chromium profiles stored under a
// user-data root.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"profileshot/internal/logging"
)

// DefaultName is the profile Chromium creates first.
const DefaultName = "Default"

// namedPrefix marks the additional profiles Chromium creates ("Profile 1", ...).
const namedPrefix = "Profile "

var (
	// ErrNotFound matches any *NotFoundError.
	ErrNotFound = errors.New("profile not found")
	// ErrInUse is returned when a running browser holds the user-data root.
	ErrInUse = errors.New("user data directory is in use by a running browser")
)

// NotFoundError reports an unknown profile together with the profiles that
// do exist, so the operator can correct the name.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("profile %q not found; no profiles available", e.Name)
	}
	return fmt.Sprintf("profile %q not found; available profiles: %s", e.Name, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Files that make up the size estimate. Newer Chromium keeps cookies under Network/.
var sizeFiles = []string{
	"Cookies",
	filepath.Join("Network", "Cookies"),
	"Login Data",
	"History",
	"Preferences",
}

// Chromium's process singleton entries in the user-data root.
var lockFiles = []string{"SingletonLock", "SingletonSocket", "SingletonCookie"}

// Info is the inventory entry for one profile.
type Info struct {
	Name         string
	Path         string
	SizeBytes    int64
	HasLoginData bool
	HasCookies   bool
}

// Store reads profiles from a user-data root.
type Store struct {
	root   string
	logger *logging.Logger
}

// NewStore returns a Store rooted at the given user-data directory.
func NewStore(root string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the user-data root.
func (s *Store) Root() string { return s.root }

// Path returns the directory a profile name maps to. It does not check existence.
func (s *Store) Path(name string) string { return filepath.Join(s.root, name) }

// List returns "Default" (if present) and every "Profile *" directory, sorted.
// A missing root yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user data dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == DefaultName || strings.HasPrefix(e.Name(), namedPrefix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Validate checks that a profile directory of exactly that name exists and
// returns its path. Unknown names yield a *NotFoundError.
func (s *Store) Validate(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", s.notFound(name)
	}
	// Match against the directory listing so case-insensitive filesystems
	// still require the exact name.
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", s.notFound(name)
	}
	for _, e := range entries {
		if e.Name() != name {
			continue
		}
		path := s.Path(name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}
		break
	}
	return "", s.notFound(name)
}

func (s *Store) notFound(name string) error {
	available, err := s.List()
	if err != nil {
		s.logger.Warn().Err(err).Msg("listing profiles for error report failed")
	}
	return &NotFoundError{Name: name, Available: available}
}

// Info returns the inventory entry for a single profile.
func (s *Store) Info(name string) (Info, error) {
	path, err := s.Validate(name)
	if err != nil {
		return Info{}, err
	}
	info := Info{Name: name, Path: path}
	for _, f := range sizeFiles {
		st, err := os.Stat(filepath.Join(path, f))
		if err != nil || st.IsDir() {
			continue
		}
		info.SizeBytes += st.Size()
		switch filepath.Base(f) {
		case "Cookies":
			info.HasCookies = true
		case "Login Data":
			info.HasLoginData = true
		}
	}
	return info, nil
}

// Inventory returns Info for every listed profile. Profiles that disappear
// between listing and inspection are skipped.
func (s *Store) Inventory() ([]Info, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		info, err := s.Info(name)
		if err != nil {
			s.logger.Warn().Str("profile", name).Err(err).Msg("profile inspection failed")
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// InUse reports whether a running browser currently owns the user-data root.
func (s *Store) InUse() bool {
	for _, f := range lockFiles {
		if _, err := os.Lstat(filepath.Join(s.root, f)); err == nil {
			return true
		}
	}
	return false
}
