package geocode

import (
	"context"
	"log/slog"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

const resolveTimeout = 15 * time.Second

// Resolver fills in course localities after the fact. Resolution is strictly
// best-effort: a failed lookup leaves the course untouched and is only
// logged.
type Resolver struct {
	store  store.Store
	client *Client
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(st store.Store, client *Client, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  st,
		client: client,
		logger: logger,
	}
}

// FillLocality resolves and saves the locality for one course. Courses
// without coordinates, or with a locality already set, are skipped.
func (r *Resolver) FillLocality(ctx context.Context, courseUUID string) error {
	course, ok, err := r.store.Course(courseUUID)
	if err != nil {
		return err
	}
	if !ok || course.Locality != "" || course.Latitude == nil || course.Longitude == nil {
		return nil
	}

	place, err := r.client.Locality(ctx, *course.Latitude, *course.Longitude)
	if err != nil {
		logging.Warn(r.logger, "locality lookup failed", "error", err,
			logging.FieldCourseID, courseUUID)
		return nil
	}

	course.Locality = place
	err = r.store.Update(func(tx store.Tx) error {
		return tx.PutCourse(course)
	})
	if err != nil {
		return err
	}
	logging.Info(r.logger, "course locality resolved",
		logging.FieldCourseID, courseUUID, "locality", place)
	return nil
}

// CourseCreated is the merge-engine hook form: it resolves in the
// background with its own deadline so a slow lookup never stalls an import.
func (r *Resolver) CourseCreated(course domain.Course) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		if err := r.FillLocality(ctx, course.UUID); err != nil {
			logging.Warn(r.logger, "locality fill failed", "error", err,
				logging.FieldCourseID, course.UUID)
		}
	}()
}
