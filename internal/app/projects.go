package app

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"molten/pkg/domain"
	"molten/pkg/storage"
	"molten/pkg/store"
)

// ProjectService manages project plans/logs and their owned children. Image
// binaries go to object storage; the store keeps only the metadata rows.
type ProjectService struct {
	projects store.ProjectStore
	images   storage.ImageStore // optional
	now      func() time.Time
}

// NewProjectService wires the service. images may be nil; image operations
// then fail with ErrImageStoreUnavailable.
func NewProjectService(s store.Store, images storage.ImageStore) *ProjectService {
	return &ProjectService{
		projects: s,
		images:   images,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProject validates and stores a project with its child collections.
// Children get IDs and sequential order indexes when missing.
func (s *ProjectService) CreateProject(ctx context.Context, project domain.Project) (domain.Project, error) {
	project.Title = strings.TrimSpace(project.Title)
	if err := failValidation(project.Validate()); err != nil {
		return domain.Project{}, err
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := s.now()
	project.CreatedAt = now
	project.UpdatedAt = now
	normalizeChildren(project.Tags, now)
	normalizeChildren(project.Techniques, now)
	normalizeChildren(project.References, now)
	for i := range project.Steps {
		if project.Steps[i].ID == "" {
			project.Steps[i].ID = uuid.NewString()
		}
		project.Steps[i].OrderIndex = i
		project.Steps[i].CreatedAt = now
	}
	for i := range project.GlassUsage {
		if project.GlassUsage[i].ID == "" {
			project.GlassUsage[i].ID = uuid.NewString()
		}
		project.GlassUsage[i].OrderIndex = i
		project.GlassUsage[i].CreatedAt = now
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func normalizeChildren(children []domain.ProjectChild, now time.Time) {
	for i := range children {
		if children[i].ID == "" {
			children[i].ID = uuid.NewString()
		}
		children[i].OrderIndex = i
		children[i].CreatedAt = now
	}
}

func (s *ProjectService) GetProject(ctx context.Context, id string) (domain.Project, bool, error) {
	return s.projects.GetProject(ctx, id)
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx)
}

// UpdateProject replaces a project and its children; absent IDs fail with
// store.ErrNotFound.
func (s *ProjectService) UpdateProject(ctx context.Context, project domain.Project) error {
	project.Title = strings.TrimSpace(project.Title)
	if err := failValidation(project.Validate()); err != nil {
		return err
	}
	now := s.now()
	project.UpdatedAt = now
	normalizeChildren(project.Tags, now)
	normalizeChildren(project.Techniques, now)
	normalizeChildren(project.References, now)
	return s.projects.UpdateProject(ctx, project)
}

// DeleteProject removes a project, its children and its stored images.
// Absent IDs are a no-op.
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	project, found, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if s.images != nil {
		for _, ref := range project.Images {
			if ref.StorageKey == "" {
				continue
			}
			if err := s.images.Delete(ctx, ref.StorageKey); err != nil {
				logFromCtx(ctx).Warn("image delete failed", "project_id", id, "key", ref.StorageKey, "error", err)
			}
		}
	}
	return s.projects.DeleteProject(ctx, id)
}

// AttachImage uploads an image binary and records its metadata on the
// project.
func (s *ProjectService) AttachImage(ctx context.Context, projectID, filename, contentType string, body io.Reader, size int64, caption string) (domain.ImageRef, error) {
	if s.images == nil {
		return domain.ImageRef{}, ErrImageStoreUnavailable
	}
	project, found, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return domain.ImageRef{}, err
	}
	if !found {
		return domain.ImageRef{}, store.ErrNotFound
	}
	ref := domain.ImageRef{
		ID:         uuid.NewString(),
		Caption:    strings.TrimSpace(caption),
		OrderIndex: len(project.Images),
		CreatedAt:  s.now(),
	}
	ref.StorageKey = storage.ImageKey(projectID, ref.ID, filename)
	if err := s.images.Put(ctx, ref.StorageKey, body, size, contentType); err != nil {
		return domain.ImageRef{}, err
	}
	if err := s.projects.AddImageRef(ctx, projectID, ref); err != nil {
		// Metadata failed; drop the orphaned binary.
		if delErr := s.images.Delete(ctx, ref.StorageKey); delErr != nil {
			logFromCtx(ctx).Warn("orphan image cleanup failed", "key", ref.StorageKey, "error", delErr)
		}
		return domain.ImageRef{}, err
	}
	return ref, nil
}

// ImageURL returns a short-lived download URL for a project image.
func (s *ProjectService) ImageURL(ctx context.Context, projectID, refID string, expiry time.Duration) (string, error) {
	if s.images == nil {
		return "", ErrImageStoreUnavailable
	}
	project, found, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", store.ErrNotFound
	}
	for _, ref := range project.Images {
		if ref.ID == refID {
			return s.images.PresignGet(ctx, ref.StorageKey, expiry)
		}
	}
	return "", store.ErrNotFound
}

// RemoveImage deletes an image's binary and metadata.
func (s *ProjectService) RemoveImage(ctx context.Context, projectID, refID string) error {
	project, found, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	for _, ref := range project.Images {
		if ref.ID != refID {
			continue
		}
		if s.images != nil && ref.StorageKey != "" {
			if err := s.images.Delete(ctx, ref.StorageKey); err != nil {
				logFromCtx(ctx).Warn("image delete failed", "project_id", projectID, "key", ref.StorageKey, "error", err)
			}
		}
		return s.projects.DeleteImageRef(ctx, projectID, refID)
	}
	return store.ErrNotFound
}
