package model

import (
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/hcloud"
)

type Builder struct {
	Id          int64
	Name        string `xorm:"unique notnull"`
	URL         string `xorm:"'url' notnull"`
	ProcessorId int64  `xorm:"index notnull"`
	Virtualized bool
	VMHost      string `xorm:"'vm_host'"`
	BuilderOK   bool   `xorm:"'builderok'"`
	FailNotes   string
	Manual      bool
	Active      bool
	CreatedAt   time.Time `xorm:"created"`
	UpdatedAt   time.Time `xorm:"updated"`
}

// IsDispatchable reports whether the builder takes part in a dispatch tick.
func (b *Builder) IsDispatchable() bool {
	return b.Active && b.BuilderOK && !b.Manual
}

// NewBuilderFromHetznerServer registers a virtualized builder running on a
// Hetzner VM. The VM name doubles as the resume host.
func NewBuilderFromHetznerServer(server *hcloud.Server, processorId int64, port int) Builder {
	return Builder{
		Name:        server.Name,
		URL:         "http://" + server.PublicNet.IPv4.IP.String() + ":" + strconv.Itoa(port),
		ProcessorId: processorId,
		Virtualized: true,
		VMHost:      server.Name,
		BuilderOK:   true,
		Active:      true,
		CreatedAt:   server.Created,
	}
}
