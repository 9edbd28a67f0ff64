package usecase

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visearch/internal/adapter/assets"
	"visearch/internal/domain"
)

func TestMatchFiles(t *testing.T) {
	dir := t.TempDir()
	for name, c := range map[string]color.NRGBA{
		"red.png":  red,
		"blue.png": blue,
	} {
		buf := solidFrame(100, 80, c)
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, buf.Image()))
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0644))

	p := newTestPipeline(t, newCountingLoader(testDim))
	paths := []string{
		filepath.Join(dir, "red.png"),
		filepath.Join(dir, "broken.png"),
		filepath.Join(dir, "blue.png"),
	}

	var progress []int
	out, err := p.MatchFiles(context.Background(), paths, 2, func(done, total int) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "RED", out[0].Results[0].Code)
	assert.Len(t, out[0].Results, 2)
	assert.Error(t, out[1].Err)
	assert.NotEmpty(t, out[1].Error)
	assert.Equal(t, "BLUE", out[2].Results[0].Code)
	assert.Equal(t, []int{1, 2, 3}, progress)
}

func TestMatchFiles_ModelFailureStopsBatch(t *testing.T) {
	loader := newCountingLoader(testDim)
	loader.failures = 10
	p := newTestPipeline(t, loader)

	dir := t.TempDir()
	path := filepath.Join(dir, "red.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidFrame(50, 50, red).Image()))
	require.NoError(t, f.Close())

	out, err := p.MatchFiles(context.Background(), []string{path, path}, 3, nil)
	assert.ErrorIs(t, err, domain.ErrModelLoad)
	assert.Empty(t, out)
}

func TestVerifyAssets(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "perfiles"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "perfiles", "RED.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "BLUE.bmp"), []byte("x"), 0644))

	p := newTestPipeline(t, newCountingLoader(testDim))
	report, err := p.VerifyAssets(context.Background(), root, assets.PriorityJPG, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"GREEN"}, report.Missing)
	assert.Equal(t, "perfiles/RED.jpg", report.Resolved["RED"])
	assert.Equal(t, "BLUE.bmp", report.Resolved["BLUE"])
}
