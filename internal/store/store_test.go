package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FS {
	t.Helper()
	s := New(t.TempDir(), []string{"stage", "prod"}, []string{"ab", "cd"})
	require.NoError(t, s.Init())
	return s
}

func TestInit(t *testing.T) {
	s := newStore(t)

	for _, dir := range []string{"stage/ab", "stage/cd", "prod/ab", "prod/cd"} {
		info, err := os.Stat(filepath.Join(s.Root(), dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestSlugAndDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		display string
	}{
		{"AB Stage PLP Test", "ab-stage-plp-test", "Ab Stage Plp Test"},
		{"  checkout   flow ", "checkout-flow", "Checkout Flow"},
		{"search", "search", "Search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.slug, Slug(tt.name))
			assert.Equal(t, tt.display, DisplayName(tt.slug))
		})
	}
}

func TestPutGetDelete(t *testing.T) {
	s := newStore(t)

	saved, err := s.Put("Checkout Flow", "export default function() {}", "stage", "ab")
	require.NoError(t, err)
	assert.Equal(t, "checkout-flow", saved.ID)
	assert.Equal(t, "checkout-flow.js", saved.Filename)
	assert.Equal(t, "stage-ab-checkout-flow", saved.FullID)

	content, err := s.Get("stage", "ab", "checkout-flow")
	require.NoError(t, err)
	assert.Equal(t, "export default function() {}", content)

	script, err := s.Lookup("stage", "ab", "checkout-flow")
	require.NoError(t, err)
	assert.Equal(t, "Checkout Flow", script.Name)
	assert.Equal(t, content, script.Content)

	_, err = s.Put("Checkout Flow", "// v2", "stage", "ab")
	require.NoError(t, err)
	content, err = s.Get("stage", "ab", "checkout-flow")
	require.NoError(t, err)
	assert.Equal(t, "// v2", content)

	require.NoError(t, s.Delete("stage", "ab", "checkout-flow"))

	_, err = s.Get("stage", "ab", "checkout-flow")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err = s.Delete("stage", "ab", "checkout-flow")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPutCreatesNewApplicationDirectory(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("smoke", "// x", "qa", "ef")
	require.NoError(t, err)

	content, err := s.Get("qa", "ef", "smoke")
	require.NoError(t, err)
	assert.Equal(t, "// x", content)
}

func TestTraversalIsRejected(t *testing.T) {
	s := newStore(t)
	outside := filepath.Join(filepath.Dir(s.Root()), "secret.js")
	require.NoError(t, os.WriteFile(outside, []byte("// secret"), 0644))

	_, err := s.Get("..", "..", "secret")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Get("stage", "ab", "../../../secret")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Put("../escape", "// x", "stage", "ab")
	assert.True(t, errors.Is(err, ErrInvalidName))

	_, err = s.Put("ok", "// x", "stage/../..", "ab")
	assert.True(t, errors.Is(err, ErrInvalidName))

	err = s.Delete("stage", "..", "secret")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, statErr := os.Stat(outside)
	assert.NoError(t, statErr)
}

func TestList(t *testing.T) {
	s := newStore(t)
	_, err := s.Seed()
	require.NoError(t, err)

	// Non-script files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "stage", "ab", "notes.txt"), []byte("x"), 0644))

	t.Run("environment and application", func(t *testing.T) {
		scripts, err := s.List(Filter{Environment: "stage", Application: "ab"})
		require.NoError(t, err)
		require.Len(t, scripts, 2)
		assert.Equal(t, "Ab Stage Homepage Test", scripts[0].Name)
		assert.Equal(t, "Ab Stage Plp Test", scripts[1].Name)
		assert.Empty(t, scripts[0].Content)
	})

	t.Run("environment only", func(t *testing.T) {
		scripts, err := s.List(Filter{Environment: "stage"})
		require.NoError(t, err)
		require.Len(t, scripts, 3)
		assert.Equal(t, "AB - Ab Stage Homepage Test", scripts[0].Name)
		assert.Equal(t, "CD - Cd Stage Homepage Test", scripts[2].Name)
		assert.Equal(t, "cd", scripts[2].Application)
	})

	t.Run("unfiltered", func(t *testing.T) {
		scripts, err := s.List(Filter{})
		require.NoError(t, err)
		require.Len(t, scripts, 5)
		assert.Equal(t, "PROD AB - Ab Prod Homepage Test", scripts[0].Name)
		assert.Equal(t, "STAGE CD - Cd Stage Homepage Test", scripts[4].Name)
	})

	t.Run("unknown environment", func(t *testing.T) {
		scripts, err := s.List(Filter{Environment: "dev", Application: "ab"})
		require.NoError(t, err)
		assert.NotNil(t, scripts)
		assert.Empty(t, scripts)
	})
}

func TestSeed(t *testing.T) {
	s := newStore(t)

	n, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	content, err := s.Get("stage", "ab", "ab-stage-plp-test")
	require.NoError(t, err)
	assert.Contains(t, content, "vus: 5")

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "prod", "cd", "cd-prod-homepage-test.js"), []byte("// edited"), 0644))

	n, err = s.Seed()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	content, err = s.Get("prod", "cd", "cd-prod-homepage-test")
	require.NoError(t, err)
	assert.Equal(t, "// edited", content)
}
