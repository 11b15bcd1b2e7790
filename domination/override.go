package domination

import (
	"context"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

// OverrideRequest holds the overrides to change. Nil fields keep their
// current value.
type OverrideRequest struct {
	Component *string
	Section   *string
	Priority  *model.BinaryPriority
}

func (r OverrideRequest) apply(current model.Overrides) model.Overrides {
	next := current
	if r.Component != nil {
		next.Component = *r.Component
	}
	if r.Section != nil {
		next.Section = *r.Section
	}
	if r.Priority != nil {
		next.Priority = *r.Priority
	}
	return next
}

// ChangeSourceOverride files the source under new overrides by creating a new
// PENDING publication. It returns nil without writing anything if the request
// matches the current overrides. The original publication is left untouched.
func (e *Engine) ChangeSourceOverride(ctx context.Context, pub *model.SourcePublication, request OverrideRequest) (*model.SourcePublication, error) {
	request.Priority = nil
	next := request.apply(pub.Overrides())
	if next == pub.Overrides() {
		return nil, nil
	}
	archive, err := e.Store.GetArchive(pub.ArchiveId)
	if err != nil {
		return nil, err
	}
	if err := checkComponent(archive, next.Component); err != nil {
		return nil, err
	}

	created := &model.SourcePublication{
		SourcePackageReleaseId: pub.SourcePackageReleaseId,
		SourcePackageName:      pub.SourcePackageName,
		DistroSeriesId:         pub.DistroSeriesId,
		ArchiveId:              pub.ArchiveId,
		Pocket:                 pub.Pocket,
		Component:              next.Component,
		Section:                next.Section,
		Status:                 model.PUBLISHING_STATUS_PENDING,
		AncestorId:             pub.Id,
	}
	if err := e.Store.Insert(created); err != nil {
		return nil, err
	}
	e.Logger.Info("Changed source overrides", "publication", pub.Id, "new_publication", created.Id, "component", next.Component, "section", next.Section)
	return created, nil
}

// ChangeBinaryOverride is ChangeSourceOverride for binaries. Architecture
// independent binaries are re-filed on every architecture and DDEBs follow
// their binary. All created publications are returned.
func (e *Engine) ChangeBinaryOverride(ctx context.Context, pub *model.BinaryPublication, request OverrideRequest) ([]*model.BinaryPublication, error) {
	next := request.apply(pub.Overrides())
	if next == pub.Overrides() {
		return nil, nil
	}
	archive, err := e.Store.GetArchive(pub.ArchiveId)
	if err != nil {
		return nil, err
	}
	if err := checkComponent(archive, next.Component); err != nil {
		return nil, err
	}
	release, err := e.Store.GetBinaryPackageRelease(pub.BinaryPackageReleaseId)
	if err != nil {
		return nil, err
	}

	var created []*model.BinaryPublication
	err = e.Store.Transaction(ctx, func(q *store.Queries) error {
		group, err := e.binaryGroup(q, pub, release)
		if err != nil {
			return err
		}
		for _, member := range group {
			copied := &model.BinaryPublication{
				BinaryPackageReleaseId: member.BinaryPackageReleaseId,
				BinaryPackageName:      member.BinaryPackageName,
				DistroArchSeriesId:     member.DistroArchSeriesId,
				ArchiveId:              member.ArchiveId,
				Pocket:                 member.Pocket,
				Component:              next.Component,
				Section:                next.Section,
				Status:                 model.PUBLISHING_STATUS_PENDING,
				Priority:               next.Priority,
				AncestorId:             member.Id,
			}
			if err := q.Insert(copied); err != nil {
				return err
			}
			created = append(created, copied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Changed binary overrides", "publication", pub.Id, "publications", len(created), "component", next.Component, "section", next.Section, "priority", next.Priority)
	return created, nil
}
