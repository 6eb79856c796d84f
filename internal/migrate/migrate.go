// Package migrate rewrites legacy serialized project blobs into owned child
// records. Each phase runs at most once, gated by a persisted flag, and a
// failed record never blocks the rest of its phase.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"molten/internal/util"
	"molten/pkg/domain"
	"molten/pkg/store"
)

// Phase flags. Clearing a flag by hand re-runs its phase, which is not
// duplicate-safe: already promoted children are appended again.
const (
	FlagTags       = "project_tags_v1"
	FlagTechniques = "project_techniques_v1"
	FlagReferences = "project_reference_urls_v1"
	FlagGlassUsage = "project_glass_usage_v1"
)

// RecordResult is the outcome for one project within one phase.
type RecordResult struct {
	ProjectID string `json:"projectId"`
	Phase     string `json:"phase"`
	Promoted  int    `json:"promoted"`
	Err       string `json:"error,omitempty"`
}

// Report aggregates one Run.
type Report struct {
	Ran     []string       `json:"ran"`
	Skipped []string       `json:"skipped"`
	Results []RecordResult `json:"results,omitempty"`
}

// Failed counts records that could not be promoted.
func (r Report) Failed() int {
	var n int
	for _, res := range r.Results {
		if res.Err != "" {
			n++
		}
	}
	return n
}

// Runner executes the pending migration phases against one store.
type Runner struct {
	store store.Store
	now   func() time.Time
}

func NewRunner(s store.Store) *Runner {
	return &Runner{store: s, now: func() time.Time { return time.Now().UTC() }}
}

type phase struct {
	flag string
	kind store.ChildKind
	blob func(store.LegacyProjectBlobs) string
}

var childPhases = []phase{
	{FlagTags, store.ChildTag, func(b store.LegacyProjectBlobs) string { return b.Tags }},
	{FlagTechniques, store.ChildTechnique, func(b store.LegacyProjectBlobs) string { return b.Techniques }},
	{FlagReferences, store.ChildReference, func(b store.LegacyProjectBlobs) string { return b.ReferenceURLs }},
}

// Run executes every phase whose flag is unset. A record that fails to
// decode or persist is reported and skipped; the phase still completes and
// its flag is still set.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var report Report
	logger := util.LoggerFromContext(ctx)

	blobs, err := r.store.ListLegacyProjectBlobs(ctx)
	if err != nil {
		return report, fmt.Errorf("list legacy blobs: %w", err)
	}

	for _, p := range childPhases {
		done, err := r.store.MigrationFlag(ctx, p.flag)
		if err != nil {
			return report, fmt.Errorf("read flag %s: %w", p.flag, err)
		}
		if done {
			report.Skipped = append(report.Skipped, p.flag)
			continue
		}
		for _, blob := range blobs {
			res := r.promoteChildren(ctx, blob.ProjectID, p, p.blob(blob))
			if res.Promoted > 0 || res.Err != "" {
				report.Results = append(report.Results, res)
			}
			if res.Err != "" {
				logger.Warn("migration record failed", "phase", p.flag, "project_id", blob.ProjectID, "error", res.Err)
			}
		}
		if err := r.store.SetMigrationFlag(ctx, p.flag, r.now()); err != nil {
			return report, fmt.Errorf("set flag %s: %w", p.flag, err)
		}
		report.Ran = append(report.Ran, p.flag)
		logger.Info("migration phase complete", "phase", p.flag)
	}

	if err := r.runGlassUsage(ctx, blobs, &report, logger); err != nil {
		return report, err
	}
	return report, nil
}

// promoteChildren rewrites one project's blob for one child kind. Child
// timestamps are offset so their relative order survives timestamp sorts.
func (r *Runner) promoteChildren(ctx context.Context, projectID string, p phase, blob string) RecordResult {
	res := RecordResult{ProjectID: projectID, Phase: p.flag}
	if blob == "" {
		return res
	}
	values, err := decodeStringList(blob)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	base := r.now()
	children := make([]domain.ProjectChild, 0, len(values))
	for i, value := range values {
		children = append(children, domain.ProjectChild{
			ID:         uuid.NewString(),
			Value:      value,
			OrderIndex: i,
			CreatedAt:  base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	if len(children) > 0 {
		if err := r.store.AddProjectChildren(ctx, projectID, p.kind, children); err != nil {
			res.Err = err.Error()
			return res
		}
	}
	if err := r.store.ClearLegacyBlob(ctx, projectID, p.kind); err != nil {
		res.Err = err.Error()
		return res
	}
	res.Promoted = len(children)
	return res
}

func (r *Runner) runGlassUsage(ctx context.Context, blobs []store.LegacyProjectBlobs, report *Report, logger *slog.Logger) error {
	done, err := r.store.MigrationFlag(ctx, FlagGlassUsage)
	if err != nil {
		return fmt.Errorf("read flag %s: %w", FlagGlassUsage, err)
	}
	if done {
		report.Skipped = append(report.Skipped, FlagGlassUsage)
		return nil
	}
	for _, blob := range blobs {
		res := RecordResult{ProjectID: blob.ProjectID, Phase: FlagGlassUsage}
		if blob.GlassUsage == "" {
			continue
		}
		usage, err := decodeGlassUsage(blob.GlassUsage)
		if err != nil {
			res.Err = err.Error()
			report.Results = append(report.Results, res)
			logger.Warn("migration record failed", "phase", FlagGlassUsage, "project_id", blob.ProjectID, "error", res.Err)
			continue
		}
		base := r.now()
		for i := range usage {
			usage[i].ID = uuid.NewString()
			usage[i].CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		}
		if len(usage) > 0 {
			if err := r.store.AddGlassUsage(ctx, blob.ProjectID, usage); err != nil {
				res.Err = err.Error()
				report.Results = append(report.Results, res)
				logger.Warn("migration record failed", "phase", FlagGlassUsage, "project_id", blob.ProjectID, "error", res.Err)
				continue
			}
		}
		if err := r.store.ClearLegacyGlassUsage(ctx, blob.ProjectID); err != nil {
			res.Err = err.Error()
			report.Results = append(report.Results, res)
			continue
		}
		res.Promoted = len(usage)
		report.Results = append(report.Results, res)
	}
	if err := r.store.SetMigrationFlag(ctx, FlagGlassUsage, r.now()); err != nil {
		return fmt.Errorf("set flag %s: %w", FlagGlassUsage, err)
	}
	report.Ran = append(report.Ran, FlagGlassUsage)
	logger.Info("migration phase complete", "phase", FlagGlassUsage)
	return nil
}
