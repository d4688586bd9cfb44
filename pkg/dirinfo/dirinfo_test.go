package dirinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DSStoreKit/dsstore/pkg/store"
)

func writeContainer(t *testing.T, dir string, fill func(*store.Store)) {
	t.Helper()
	s := store.Create(filepath.Join(dir, ContainerName))
	fill(s)
	require.NoError(t, s.Save())
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()

	info, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Equal(t, store.ViewStyleIcon, info.ViewStyle)
	assert.Equal(t, int32(DefaultIconSize), info.IconSize)
	assert.Equal(t, int32(DefaultGridSpacing), info.GridSpacing)
	assert.Empty(t, info.Files)
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeContainer(t, dir, func(s *store.Store) {
		require.NoError(t, s.SetViewStyle(store.ViewStyleList))
		s.SetIconSize(128)
		s.SetGridSpacing(80)
		s.SetSidebarWidth(210)
		s.SetBackgroundColor(store.ColorFromRGB8(240, 240, 240))
		s.SetIconLocation("a.txt", 30, 40)
		s.SetComments("a.txt", "keep")
		s.SetLabelColor("b.txt", store.LabelRed)
	})

	info, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, store.ViewStyleList, info.ViewStyle)
	assert.Equal(t, int32(128), info.IconSize)
	assert.Equal(t, int32(80), info.GridSpacing)
	assert.Equal(t, int32(210), info.SidebarWidth)
	assert.Equal(t, store.BackgroundColor, info.Background)
	assert.Equal(t, store.ColorFromRGB8(240, 240, 240), info.BackgroundColor)

	require.Contains(t, info.Files, "a.txt")
	a := info.Files["a.txt"]
	assert.True(t, a.HasIcon)
	assert.Equal(t, [2]int32{30, 40}, [2]int32{a.IconX, a.IconY})
	assert.Equal(t, "keep", a.Comments)

	require.Contains(t, info.Files, "b.txt")
	assert.Equal(t, store.LabelRed, info.Files["b.txt"].Label)
}

func TestLoadRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ContainerName), []byte("not a container"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestCacheMemoizesAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	writeContainer(t, dir, func(s *store.Store) {
		s.SetIconSize(32)
	})

	cache, err := NewCache(16)
	require.NoError(t, err)
	defer cache.Close()

	info, err := cache.Get(dir)
	require.NoError(t, err)
	assert.Equal(t, int32(32), info.IconSize)

	// A change on disk is not seen until the entry is invalidated.
	writeContainer(t, dir, func(s *store.Store) {
		s.SetIconSize(96)
	})
	info, err = cache.Get(dir)
	require.NoError(t, err)
	assert.Equal(t, int32(32), info.IconSize)

	cache.Invalidate(dir)
	info, err = cache.Get(dir)
	require.NoError(t, err)
	assert.Equal(t, int32(96), info.IconSize)
}

func TestCacheKeyIsCleanedPath(t *testing.T) {
	dir := t.TempDir()
	writeContainer(t, dir, func(s *store.Store) {
		s.SetIconSize(48)
	})

	cache, err := NewCache(16)
	require.NoError(t, err)
	defer cache.Close()

	if _, err := cache.Get(dir + string(filepath.Separator)); err != nil {
		t.Fatalf("get: %v", err)
	}
	writeContainer(t, dir, func(s *store.Store) {
		s.SetIconSize(200)
	})

	// The unsuffixed spelling must hit the same entry.
	info, err := cache.Get(dir)
	require.NoError(t, err)
	assert.Equal(t, int32(48), info.IconSize)
}
