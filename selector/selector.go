// Package selector picks the next job for a builder. It works on plain
// records so every filter can be tested without a database.
package selector

import (
	"sort"

	"github.com/hashworks/buildfarm/model"
)

// PPAThrottlePercent is the share of a family's builders PPA jobs may occupy.
const PPAThrottlePercent = 80

// Candidate is a queued job together with the records the filters look at.
type Candidate struct {
	Job     *model.BuildQueueEntry
	Build   *model.Build
	Archive *model.Archive
	// SourcePublished is set once the source is PUBLISHED in the build's
	// archive, so a worker can fetch it from the (possibly restricted) pool.
	SourcePublished bool
}

// FamilyLoad describes how busy a processor family is.
type FamilyLoad struct {
	Builders int
	Building int
}

// Throttled reports whether PPA jobs are held back for the family.
func (l FamilyLoad) Throttled() bool {
	if l.Builders <= 1 {
		return false
	}
	return (l.Building+1)*100/l.Builders >= PPAThrottlePercent
}

type Predicate func(c *Candidate) bool

func Unbound(c *Candidate) bool {
	return !c.Job.IsBound() && c.Job.Status == model.JOB_STATUS_WAITING
}

func NeedsBuild(c *Candidate) bool {
	return c.Build.State == model.BUILD_STATE_NEEDSBUILD
}

func SameProcessor(builder *model.Builder) Predicate {
	return func(c *Candidate) bool {
		return c.Build.ProcessorId == builder.ProcessorId
	}
}

func ArchiveAllows(builder *model.Builder) Predicate {
	return func(c *Candidate) bool {
		return c.Archive.Enabled && c.Archive.RequireVirtualized == builder.Virtualized
	}
}

func PrivateSourcePublished(c *Candidate) bool {
	return !c.Archive.Private || c.SourcePublished
}

func PPAThrottle(load FamilyLoad) Predicate {
	throttled := load.Throttled()
	return func(c *Candidate) bool {
		return !throttled || c.Archive.Purpose != model.ARCHIVE_PURPOSE_PPA
	}
}

// Filter keeps the candidates every predicate accepts, preserving order.
func Filter(candidates []*Candidate, predicates ...Predicate) []*Candidate {
	kept := make([]*Candidate, 0, len(candidates))
CANDIDATES:
	for _, c := range candidates {
		for _, accept := range predicates {
			if !accept(c) {
				continue CANDIDATES
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// Order sorts by score descending, then build id ascending, then job id.
func Order(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Job.LastScore != b.Job.LastScore {
			return a.Job.LastScore > b.Job.LastScore
		}
		if a.Build.Id != b.Build.Id {
			return a.Build.Id < b.Build.Id
		}
		return a.Job.Id < b.Job.Id
	})
}

// Predicates returns the filters a candidate must pass for the builder.
func Predicates(builder *model.Builder, load FamilyLoad) []Predicate {
	return []Predicate{
		Unbound,
		NeedsBuild,
		SameProcessor(builder),
		ArchiveAllows(builder),
		PrivateSourcePublished,
		PPAThrottle(load),
	}
}

// Select returns the best candidate for the builder, or nil.
func Select(builder *model.Builder, candidates []*Candidate, load FamilyLoad) *Candidate {
	eligible := Filter(candidates, Predicates(builder, load)...)
	if len(eligible) == 0 {
		return nil
	}
	Order(eligible)
	return eligible[0]
}
