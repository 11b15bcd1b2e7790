// Package inventory loads the processors, series, archives and builders of a
// farm from a YAML file.
package inventory

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

type Processor struct {
	Name       string `yaml:"name"`
	Restricted bool   `yaml:"restricted"`
}

type ArchSeries struct {
	Tag                string `yaml:"tag"`
	Processor          string `yaml:"processor"`
	NominatedArchIndep bool   `yaml:"nominated_arch_indep"`
	Disabled           bool   `yaml:"disabled"`
	ChrootURL          string `yaml:"chroot_url"`
	ChrootSHA1         string `yaml:"chroot_sha1"`
}

type Series struct {
	Name          string       `yaml:"name"`
	Architectures []ArchSeries `yaml:"architectures"`
}

type Archive struct {
	Name                 string   `yaml:"name"`
	Purpose              string   `yaml:"purpose"`
	Private              bool     `yaml:"private"`
	Disabled             bool     `yaml:"disabled"`
	RequireVirtualized   *bool    `yaml:"require_virtualized"`
	DebugArchive         string   `yaml:"debug_archive"`
	RestrictedProcessors []string `yaml:"restricted_processors"`
	RelativeBuildScore   int      `yaml:"relative_build_score"`
	BuilddSecret         string   `yaml:"buildd_secret"`
}

type Builder struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Processor   string `yaml:"processor"`
	Virtualized bool   `yaml:"virtualized"`
	VMHost      string `yaml:"vm_host"`
	Manual      bool   `yaml:"manual"`
}

type Inventory struct {
	Processors []Processor `yaml:"processors"`
	Series     []Series    `yaml:"series"`
	Archives   []Archive   `yaml:"archives"`
	Builders   []Builder   `yaml:"builders"`
}

func Load(r io.Reader) (*Inventory, error) {
	var inventory Inventory
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&inventory); err != nil {
		if errors.Is(err, io.EOF) {
			return &inventory, nil
		}
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}
	return &inventory, nil
}

// Len is the number of records Apply visits.
func (i *Inventory) Len() int {
	n := len(i.Processors) + len(i.Archives) + len(i.Builders)
	for _, series := range i.Series {
		n += 1 + len(series.Architectures)
	}
	return n
}

// Apply inserts every record that does not exist yet, matched by name, and
// returns how many it inserted. step is called once per visited record.
// Debug archives must be listed before the archives referring to them.
func (i *Inventory) Apply(q *store.Queries, step func()) (int, error) {
	if step == nil {
		step = func() {}
	}
	created := 0

	for _, p := range i.Processors {
		ok, err := i.applyProcessor(q, p)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
		step()
	}

	for _, s := range i.Series {
		n, err := i.applySeries(q, s, step)
		created += n
		if err != nil {
			return created, err
		}
	}

	for _, a := range i.Archives {
		ok, err := i.applyArchive(q, a)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
		step()
	}

	for _, b := range i.Builders {
		processor, err := q.GetProcessorByName(b.Processor)
		if err != nil {
			return created, fmt.Errorf("builder %s: processor %s: %w", b.Name, b.Processor, err)
		}
		ok, err := q.RegisterBuilder(&model.Builder{
			Name:        b.Name,
			URL:         b.URL,
			ProcessorId: processor.Id,
			Virtualized: b.Virtualized,
			VMHost:      b.VMHost,
			Manual:      b.Manual,
			BuilderOK:   true,
			Active:      true,
		})
		if err != nil {
			return created, fmt.Errorf("builder %s: %w", b.Name, err)
		}
		if ok {
			created++
		}
		step()
	}

	return created, nil
}

func (i *Inventory) applyProcessor(q *store.Queries, p Processor) (bool, error) {
	_, err := q.GetProcessorByName(p.Name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err := q.Insert(&model.Processor{Name: p.Name, Restricted: p.Restricted}); err != nil {
		return false, fmt.Errorf("processor %s: %w", p.Name, err)
	}
	return true, nil
}

func (i *Inventory) applySeries(q *store.Queries, s Series, step func()) (int, error) {
	created := 0
	series, err := q.GetDistroSeriesByName(s.Name)
	if errors.Is(err, store.ErrNotFound) {
		series = &model.DistroSeries{Name: s.Name}
		if err := q.Insert(series); err != nil {
			return created, fmt.Errorf("series %s: %w", s.Name, err)
		}
		created++
	} else if err != nil {
		return created, err
	}
	step()

	existing, err := q.ListDistroArchSeries(series.Id)
	if err != nil {
		return created, err
	}
	known := make(map[string]bool, len(existing))
	for _, das := range existing {
		known[das.ArchTag] = true
	}

	for _, a := range s.Architectures {
		if !known[a.Tag] {
			processor, err := q.GetProcessorByName(a.Processor)
			if err != nil {
				return created, fmt.Errorf("series %s/%s: processor %s: %w", s.Name, a.Tag, a.Processor, err)
			}
			err = q.Insert(&model.DistroArchSeries{
				DistroSeriesId:       series.Id,
				ArchTag:              a.Tag,
				ProcessorId:          processor.Id,
				Enabled:              !a.Disabled,
				IsNominatedArchIndep: a.NominatedArchIndep,
				ChrootURL:            a.ChrootURL,
				ChrootSHA1:           a.ChrootSHA1,
			})
			if err != nil {
				return created, fmt.Errorf("series %s/%s: %w", s.Name, a.Tag, err)
			}
			known[a.Tag] = true
			created++
		}
		step()
	}
	return created, nil
}

func (i *Inventory) applyArchive(q *store.Queries, a Archive) (bool, error) {
	_, err := q.GetArchiveByName(a.Name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	purpose, ok := model.ParseArchivePurpose(a.Purpose)
	if !ok {
		return false, fmt.Errorf("archive %s: unknown purpose %q", a.Name, a.Purpose)
	}
	archive := &model.Archive{
		Name:                 a.Name,
		Purpose:              purpose,
		Private:              a.Private,
		Enabled:              !a.Disabled,
		RequireVirtualized:   purpose == model.ARCHIVE_PURPOSE_PPA || purpose == model.ARCHIVE_PURPOSE_COPY,
		RestrictedProcessors: a.RestrictedProcessors,
		RelativeBuildScore:   a.RelativeBuildScore,
		BuilddSecret:         a.BuilddSecret,
	}
	if a.RequireVirtualized != nil {
		archive.RequireVirtualized = *a.RequireVirtualized
	}
	if a.DebugArchive != "" {
		debug, err := q.GetArchiveByName(a.DebugArchive)
		if err != nil {
			return false, fmt.Errorf("archive %s: debug archive %s: %w", a.Name, a.DebugArchive, err)
		}
		archive.DebugArchiveId = debug.Id
	}
	if err := q.Insert(archive); err != nil {
		return false, fmt.Errorf("archive %s: %w", a.Name, err)
	}
	return true, nil
}
