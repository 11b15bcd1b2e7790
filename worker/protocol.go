// Package worker talks to remote build workers and to the hosts their
// virtual machines run on.
package worker

// ProtocolVersion is the worker protocol the dispatcher speaks.
const ProtocolVersion = "1.0"

type Status string

const (
	STATUS_IDLE     Status = "IDLE"
	STATUS_BUILDING Status = "BUILDING"
	STATUS_WAITING  Status = "WAITING"
	STATUS_ABORTING Status = "ABORTING"
)

// BUILDER_TYPE_BINARY_PACKAGE is the only build type the dispatcher starts.
const BUILDER_TYPE_BINARY_PACKAGE = "binarypackage"

type Info struct {
	ProtocolVersion string   `json:"protocol_version"`
	ArchTags        []string `json:"arch_tags"`
	BuilderTypes    []string `json:"builder_types"`
}

func (i *Info) SupportsArch(archTag string) bool {
	for _, tag := range i.ArchTags {
		if tag == archTag {
			return true
		}
	}
	return false
}

type StatusResponse struct {
	Status Status `json:"status"`
	Cookie string `json:"cookie,omitempty"`
}

type EnsurePresentRequest struct {
	SHA1     string `json:"sha1"`
	URL      string `json:"url"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
}

type EnsurePresentResponse struct {
	Present bool   `json:"present"`
	Info    string `json:"info"`
}

type BuildRequest struct {
	Cookie      string            `json:"cookie"`
	BuilderType string            `json:"builder_type"`
	ChrootSHA1  string            `json:"chroot_sha1"`
	Files       map[string]string `json:"files"`
	Archive     string            `json:"archive"`
	ArchTag     string            `json:"arch_tag"`
	Suite       string            `json:"suite"`
	Private     bool              `json:"archive_private"`
}

type BuildResponse struct {
	Status Status `json:"status"`
	Info   string `json:"info"`
}
