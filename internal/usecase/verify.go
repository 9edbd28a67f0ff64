package usecase

import (
	"context"

	"visearch/internal/adapter/assets"
)

// VerifyAssets loads the reference set and checks that every code resolves
// to a display image under root.
func (p *Pipeline) VerifyAssets(ctx context.Context, root string, priority assets.Priority, excludes []string) (*assets.Report, error) {
	set, err := p.refs.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	report, err := assets.Verify(ctx, root, set.Codes(), priority, excludes)
	if err != nil {
		return nil, err
	}
	p.logger.Info("assets verified",
		"root", root,
		"codes", len(set.Codes()),
		"missing", len(report.Missing),
		"orphans", len(report.Orphans))
	return report, nil
}
