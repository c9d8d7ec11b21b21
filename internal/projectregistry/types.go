// Package projectregistry tracks the project's Pages, Components, APIs,
// and Database-collection inventory (spec §3 "Registry entry") so the
// router can award an affinity bonus and so duplicate-name drift across
// agents gets caught at insert time instead of at review time.
package projectregistry

import "time"

// Domain is one of the four registry collections spec §6 lists as separate
// on-disk files.
type Domain string

const (
	DomainPages      Domain = "pages"
	DomainComponents Domain = "components"
	DomainAPIs       Domain = "apis"
	DomainDatabase   Domain = "database"
)

// Domains lists every recognised domain, in the fixed order their files are
// loaded/saved.
var Domains = []Domain{DomainPages, DomainComponents, DomainAPIs, DomainDatabase}

// Entry is one registry record (spec §3).
type Entry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FilePath     string    `json:"file_path"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Dependencies []string  `json:"dependencies"`
}
