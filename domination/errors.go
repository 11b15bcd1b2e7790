package domination

import (
	"fmt"

	"github.com/hashworks/buildfarm/model"
)

// ArchiveOverrideError rejects a component that belongs to another archive
// than the publication's own.
type ArchiveOverrideError struct {
	Component string
	Archive   string
	Purpose   model.ArchivePurpose
}

func (e *ArchiveOverrideError) Error() string {
	return fmt.Sprintf("component %q belongs to the %s archive, not to %s", e.Component, e.Purpose, e.Archive)
}

// purposeOfComponent returns the main archive a component is published in.
func purposeOfComponent(component string) model.ArchivePurpose {
	if component == "partner" {
		return model.ARCHIVE_PURPOSE_PARTNER
	}
	return model.ARCHIVE_PURPOSE_PRIMARY
}

func checkComponent(archive *model.Archive, component string) error {
	if !archive.IsMain() {
		return nil
	}
	if purpose := purposeOfComponent(component); purpose != archive.Purpose {
		return &ArchiveOverrideError{Component: component, Archive: archive.Name, Purpose: purpose}
	}
	return nil
}
