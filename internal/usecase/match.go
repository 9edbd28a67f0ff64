package usecase

import (
	"context"
	"errors"

	"visearch/internal/adapter/pixels"
	"visearch/internal/domain"
)

// FileMatch is the outcome of searching with one image file.
type FileMatch struct {
	Path    string               `json:"path"`
	Results []domain.MatchResult `json:"results,omitempty"`
	Err     error                `json:"-"`
	Error   string               `json:"error,omitempty"`
}

// MatchFiles searches with each image in turn. A file that cannot be decoded
// or normalized is reported and skipped; a model or reference failure stops
// the batch since every later file would fail the same way.
func (p *Pipeline) MatchFiles(ctx context.Context, paths []string, limit int, progress func(done, total int)) ([]FileMatch, error) {
	out := make([]FileMatch, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		m := FileMatch{Path: path}
		buf, err := pixels.DecodeFile(path)
		if err == nil {
			m.Results, err = p.Search(ctx, buf, limit)
		}
		if err != nil {
			if fatal(err) {
				return out, err
			}
			m.Err, m.Error = err, err.Error()
		}
		out = append(out, m)

		if progress != nil {
			progress(i+1, len(paths))
		}
	}
	return out, nil
}

func fatal(err error) bool {
	return errors.Is(err, domain.ErrModelLoad) ||
		errors.Is(err, domain.ErrDataLoad) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
