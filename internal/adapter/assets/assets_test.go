package assets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{
		"perfiles/P01.jpg",
		"perfiles/P01.bmp",
		"ai-references/P01.jpg",
		"P01.jpg",
		"P01.bmp",
	}, Candidates("P01", PriorityJPG))

	assert.Equal(t, []string{
		"perfiles/P01.bmp",
		"perfiles/P01.jpg",
		"ai-references/P01.jpg",
		"P01.bmp",
		"P01.jpg",
	}, Candidates("P01", PriorityBMP))
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityJPG, p)

	p, err = ParsePriority("BMP")
	require.NoError(t, err)
	assert.Equal(t, PriorityBMP, p)

	_, err = ParsePriority("gif")
	assert.Error(t, err)
}

func TestResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "perfiles/A.bmp", "ai-references/A.jpg", "B.bmp", "perfiles/C.jpg", "perfiles/C.bmp")

	r, err := NewResolver(root, PriorityJPG, 16)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		code string
		want string
	}{
		{"A", "perfiles/A.bmp"},
		{"B", "B.bmp"},
		{"C", "perfiles/C.jpg"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(ctx, tt.code)
		require.NoError(t, err, tt.code)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
	}

	_, err = r.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_BMPPriority(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "perfiles/C.jpg", "perfiles/C.bmp")

	r, err := NewResolver(root, PriorityBMP, 16)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "C")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "perfiles", "C.bmp"), got)
}

func TestResolver_CachesAnswers(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "X.jpg")

	r, err := NewResolver(root, PriorityJPG, 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "X")
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "Y")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.Remove(first))
	touch(t, root, "Y.jpg")

	again, err := r.Resolve(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	_, err = r.Resolve(ctx, "Y")
	assert.ErrorIs(t, err, ErrNotFound)

	r.Forget()
	_, err = r.Resolve(ctx, "X")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Resolve(ctx, "Y")
	assert.NoError(t, err)
}

func TestResolver_Concurrent(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "perfiles/Z.jpg")

	r, err := NewResolver(root, PriorityJPG, 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Resolve(context.Background(), "Z")
			assert.NoError(t, err)
			assert.Equal(t, filepath.Join(root, "perfiles", "Z.jpg"), p)
		}()
	}
	wg.Wait()
}

func TestWalker(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.jpg", "perfiles/b.bmp", "thumbs/c.jpg", ".cache/d.jpg", "notes.txt")

	files, err := NewWalker(nil, []string{"**/.*/**", "thumbs/**"}).Walk(root)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.Equal(t, int64(1), f.Size)
	}
	assert.ElementsMatch(t, []string{"a.jpg", "perfiles/b.bmp"}, paths)
}

func TestVerify(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "perfiles/A.jpg", "ai-references/B.jpg", "C.bmp", "perfiles/old.jpg", "readme.md")

	report, err := Verify(context.Background(), root, []string{"A", "B", "C", "D", "A", "D"}, PriorityJPG, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"A": "perfiles/A.jpg",
		"B": "ai-references/B.jpg",
		"C": "C.bmp",
	}, report.Resolved)
	assert.Equal(t, []string{"D"}, report.Missing)
	assert.Equal(t, []string{"perfiles/old.jpg"}, report.Orphans)
	assert.Equal(t, 4, report.Scanned)
}

func TestVerify_MissingRoot(t *testing.T) {
	_, err := Verify(context.Background(), filepath.Join(t.TempDir(), "none"), []string{"A"}, PriorityJPG, nil)
	assert.Error(t, err)
}
