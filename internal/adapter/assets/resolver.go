// Package assets finds the display image for a catalog code.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when no candidate file exists for a code.
var ErrNotFound = errors.New("asset not found")

type Priority string

const (
	PriorityJPG Priority = "jpg"
	PriorityBMP Priority = "bmp"
)

func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(s)) {
	case "", PriorityJPG:
		return PriorityJPG, nil
	case PriorityBMP:
		return PriorityBMP, nil
	default:
		return "", fmt.Errorf("unknown asset priority: %s", s)
	}
}

// Candidates lists the slash-separated paths probed for code, in order.
func Candidates(code string, p Priority) []string {
	first, second := "jpg", "bmp"
	if p == PriorityBMP {
		first, second = "bmp", "jpg"
	}
	return []string{
		path.Join("perfiles", code+"."+first),
		path.Join("perfiles", code+"."+second),
		path.Join("ai-references", code+".jpg"),
		code + "." + first,
		code + "." + second,
	}
}

func validCode(code string) bool {
	return code != "" && code != "." && code != ".." && !strings.ContainsAny(code, `/\`)
}

// Resolver maps codes to existing asset files under a root directory and
// remembers the answer, including misses.
type Resolver struct {
	root     string
	priority Priority
	cache    *lru.Cache[string, string]
	group    singleflight.Group
}

func NewResolver(root string, priority Priority, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{root: root, priority: priority, cache: cache}, nil
}

// Resolve returns the path of the first candidate that exists.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	if !validCode(code) {
		return "", fmt.Errorf("%q: %w", code, ErrNotFound)
	}
	if p, ok := r.cache.Get(code); ok {
		return hit(code, p)
	}

	val, err, _ := r.group.Do(code, func() (any, error) {
		p, err := r.probe(ctx, code)
		if err != nil {
			return "", err
		}
		r.cache.Add(code, p)
		return p, nil
	})
	if err != nil {
		return "", err
	}
	return hit(code, val.(string))
}

func hit(code, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%q: %w", code, ErrNotFound)
	}
	return p, nil
}

func (r *Resolver) probe(ctx context.Context, code string) (string, error) {
	for _, c := range Candidates(code, r.priority) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		full := filepath.Join(r.root, filepath.FromSlash(c))
		info, err := os.Stat(full)
		if err == nil && !info.IsDir() {
			return full, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

// Forget drops every remembered answer.
func (r *Resolver) Forget() {
	r.cache.Purge()
}
