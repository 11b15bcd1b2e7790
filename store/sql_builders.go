package store

import (
	"github.com/hashworks/buildfarm/model"
)

func (q *Queries) GetBuilder(id int64) (*model.Builder, error) {
	var builder model.Builder
	if err := q.getByID(id, &builder); err != nil {
		return nil, err
	}
	return &builder, nil
}

func (q *Queries) GetBuilderByName(name string) (*model.Builder, error) {
	var builder model.Builder
	found, err := q.db.Where("name = ?", name).Get(&builder)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &builder, nil
}

func (q *Queries) ListBuilders() ([]*model.Builder, error) {
	var builders []*model.Builder
	err := q.db.Asc("id").Find(&builders)
	return builders, err
}

// ListDispatchableBuilders returns active, healthy, non-manual builders
// ordered by id, the order a dispatch tick visits them in.
func (q *Queries) ListDispatchableBuilders() ([]*model.Builder, error) {
	var builders []*model.Builder
	err := q.db.
		Where("active = ? AND builderok = ? AND manual = ?", true, true, false).
		Asc("id").
		Find(&builders)
	return builders, err
}

// ListHealthyBuilders returns active builders that are not failed.
func (q *Queries) ListHealthyBuilders() ([]*model.Builder, error) {
	var builders []*model.Builder
	err := q.db.
		Where("active = ? AND builderok = ?", true, true).
		Asc("id").
		Find(&builders)
	return builders, err
}

// FailBuilder disables a builder until someone re-enables it manually.
func (q *Queries) FailBuilder(builderId int64, notes string) error {
	_, err := q.db.ID(builderId).Cols("builderok", "fail_notes").Update(&model.Builder{
		BuilderOK: false,
		FailNotes: notes,
	})
	return err
}

func (q *Queries) EnableBuilder(builderId int64) error {
	_, err := q.db.ID(builderId).Cols("builderok", "fail_notes").Update(&model.Builder{
		BuilderOK: true,
		FailNotes: "",
	})
	return err
}

// CurrentJob returns the job bound to the builder, if any.
func (q *Queries) CurrentJob(builderId int64) (*model.BuildQueueEntry, *model.Build, error) {
	var job model.BuildQueueEntry
	found, err := q.db.Where("builder_id = ?", builderId).Get(&job)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}
	build, err := q.GetBuild(job.BuildId)
	if err != nil {
		return nil, nil, err
	}
	return &job, build, nil
}

// RegisterBuilder inserts the builder unless one of the same name exists and
// reports whether it did.
func (q *Queries) RegisterBuilder(builder *model.Builder) (bool, error) {
	exists, err := q.db.Where("name = ?", builder.Name).Exist(new(model.Builder))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := q.db.Insert(builder); err != nil {
		return false, err
	}
	return true, nil
}
