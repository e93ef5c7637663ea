package orders

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"gemmy/internal/metrics"
	"gemmy/internal/models"
	"gemmy/internal/photos"
	"gemmy/internal/store"
	"gemmy/internal/workflow"
)

// UploadPhoto compresses r, stores it and appends it to the order's photos.
// The status moves to photos_submitted unless it is already past that.
func (s *Service) UploadPhoto(ctx context.Context, actor Actor, token, filename string, r io.Reader) (models.Photo, error) {
	if s.blobs == nil {
		return models.Photo{}, fmt.Errorf("photo storage is not configured")
	}
	p, err := s.load(ctx, token)
	if err != nil {
		return models.Photo{}, err
	}

	c, err := photos.Compress(r, photos.DefaultMaxDimension, photos.DefaultQuality)
	if err != nil {
		metrics.PhotoUploadsTotal.WithLabelValues("invalid").Inc()
		return models.Photo{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	now := s.now()
	path := photos.StoragePath(p.OrderID, now, filename)
	if err := s.blobs.Put(ctx, path, c.Bytes, "image/jpeg"); err != nil {
		metrics.PhotoUploadsTotal.WithLabelValues("failed").Inc()
		return models.Photo{}, fmt.Errorf("store photo: %w", err)
	}

	photo := models.Photo{
		URL:         s.blobs.URL(path),
		StoragePath: path,
		UploadedAt:  isoMillis(now),
		UploadedBy:  actor.Role(),
		Width:       c.Width,
		Height:      c.Height,
		Review:      models.PhotoReview{Status: models.ReviewPending},
	}
	next := s.catalog.BumpOnPhotoUpload(p.Status)

	err = s.apply(ctx, actor, p, store.Mutation{PushPhoto: &photo, Status: &next, At: now})
	if err != nil {
		metrics.PhotoUploadsTotal.WithLabelValues("failed").Inc()
		if derr := s.blobs.Delete(ctx, path); derr != nil {
			s.log.Warn("orphaned photo blob", zap.String("path", path), zap.Error(derr))
		}
		return models.Photo{}, err
	}

	metrics.PhotoUploadsTotal.WithLabelValues("ok").Inc()
	return photo, nil
}

// ReviewPhoto records a decision on one photo and moves the order to
// photos_reviewed. Other photos keep their reviews.
func (s *Service) ReviewPhoto(ctx context.Context, actor Actor, token string, index int, decision, note string) (models.PhotoReview, error) {
	p, err := s.load(ctx, token)
	if err != nil {
		return models.PhotoReview{}, err
	}
	if err := requireAdmin(actor, p); err != nil {
		return models.PhotoReview{}, err
	}
	switch decision {
	case models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
	default:
		return models.PhotoReview{}, fmt.Errorf("%w: unknown review status %q", ErrInvalid, decision)
	}
	if index < 0 || index >= len(p.Photos) {
		return models.PhotoReview{}, ErrPhotoNotFound
	}

	now := s.now()
	review := models.PhotoReview{Status: decision, Note: strings.TrimSpace(note), ReviewedAt: isoMillis(now)}
	status := workflow.StatusPhotosReviewed

	pm := store.Mutation{
		Review: &store.PhotoReview{Index: index, Review: review},
		Status: &status,
		At:     now,
	}
	s.stamp(actor, &pm)

	// The order only holds photos it was mirrored, so its list is resynced
	// from the projection instead of patched by index.
	resynced := append([]models.Photo(nil), p.Photos...)
	resynced[index].Review = review
	om := store.Mutation{SetPhotos: resynced, Status: &status, By: pm.By, At: now}

	if err := s.commit(ctx, actor, p, pm, &om); err != nil {
		return models.PhotoReview{}, err
	}
	return review, nil
}
