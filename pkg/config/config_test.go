package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("LYNX_TEST_NAME", "gazette")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "name: ${LYNX_TEST_NAME}\nlevel: 3\n")

	var got sample
	require.NoError(t, Load(path, &got))
	assert.Equal(t, sample{Name: "gazette", Level: 3}, got)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	var s sample
	assert.ErrorContains(t, Load(filepath.Join(dir, "missing.yaml"), &s), "failed to read config file")

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "name: [unclosed\n")
	assert.ErrorContains(t, Load(bad, &s), "failed to parse config file")

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, "level: 1\n")
	assert.ErrorContains(t, Load(invalid, &s), "name is required")
}

func TestLoad_KeepsDefaultsAndRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.yaml")
	writeFile(t, partial, "name: gazette\n")
	s := sample{Level: 7}
	require.NoError(t, Load(partial, &s))
	assert.Equal(t, sample{Name: "gazette", Level: 7}, s)

	empty := filepath.Join(dir, "empty.yaml")
	writeFile(t, empty, "")
	s = sample{Name: "kept"}
	require.NoError(t, Load(empty, &s))
	assert.Equal(t, "kept", s.Name)

	typo := filepath.Join(dir, "typo.yaml")
	writeFile(t, typo, "name: gazette\nlevle: 2\n")
	assert.ErrorContains(t, Load(typo, &s), "levle")
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()

	s := sample{Name: "default"}
	found, err := LoadOptional(filepath.Join(dir, "absent.yaml"), &s)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "default", s.Name)

	var empty sample
	_, err = LoadOptional(filepath.Join(dir, "absent.yaml"), &empty)
	assert.ErrorContains(t, err, "name is required")

	present := filepath.Join(dir, "present.yaml")
	writeFile(t, present, "name: file\n")
	found, err = LoadOptional(present, &s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "file", s.Name)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "name: first\nlevel: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan sample, 4)
	errs := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() *sample { return &sample{} },
			func(s *sample) {
				select {
				case changes <- *s:
				default:
				}
			},
			func(err error) {
				select {
				case errs <- err:
				default:
				}
			})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is reported and skipped.
	writeFile(t, path, "level: 2\n")
	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "name is required")
	case s := <-changes:
		t.Fatalf("invalid file applied: %+v", s)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the validation error")
	}

	writeFile(t, path, "name: second\nlevel: 5\n")
	select {
	case s := <-changes:
		assert.Equal(t, sample{Name: "second", Level: 5}, s)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
