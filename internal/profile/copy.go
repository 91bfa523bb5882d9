package profile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Profile state carried into an isolated copy.
var (
	essentialFiles = []string{
		"Cookies",
		"Login Data",
		"Preferences",
		"Secure Preferences",
		"Web Data",
		"History",
		"Bookmarks",
	}
	essentialDirs = []string{
		"Network",
		"Local Storage",
		"Session Storage",
		"IndexedDB",
		"databases",
	}
)

// CopyEssentials copies the login, cookie and storage state of a profile into
// dst and returns how many entries were copied. A failed entry is logged and
// skipped; only an unknown profile or an uncreatable dst is an error.
func (s *Store) CopyEssentials(name, dst string) (int, error) {
	src, err := s.Validate(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dst, 0o700); err != nil {
		return 0, fmt.Errorf("create profile copy dir: %w", err)
	}

	copied := 0
	for _, f := range essentialFiles {
		from := filepath.Join(src, f)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := copyFile(from, filepath.Join(dst, f)); err != nil {
			s.logger.Warn().Str("entry", f).Err(err).Msg("profile file copy failed")
			continue
		}
		copied++
	}
	for _, d := range essentialDirs {
		from := filepath.Join(src, d)
		if st, err := os.Stat(from); err != nil || !st.IsDir() {
			continue
		}
		if err := copyTree(from, filepath.Join(dst, d)); err != nil {
			s.logger.Warn().Str("entry", d).Err(err).Msg("profile directory copy failed")
			continue
		}
		copied++
	}

	s.logger.Debug().Str("profile", name).Int("entries", copied).Str("dst", dst).Msg("profile copied")
	return copied, nil
}

// localStateFile sits in the user data root and holds the key Chromium uses
// to encrypt cookies and saved logins on Linux and Windows.
const localStateFile = "Local State"

// CopyLocalState copies the root's Local State file into dstRoot. A root
// without one is not an error.
func (s *Store) CopyLocalState(dstRoot string) error {
	from := filepath.Join(s.root, localStateFile)
	if _, err := os.Stat(from); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := copyFile(from, filepath.Join(dstRoot, localStateFile)); err != nil {
		return fmt.Errorf("copy %s: %w", localStateFile, err)
	}
	s.logger.Debug().Str("dst", dstRoot).Msg("local state copied")
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
