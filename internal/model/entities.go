package model

import "time"

// Level is the governing level of a jurisdiction.
type Level string

const (
	LevelFederal Level = "federal"
	LevelState   Level = "state"
	LevelCounty  Level = "county"
	LevelCity    Level = "city"
	LevelLocal   Level = "local"
)

// levelOrder is the fixed total order used for sorting jurisdictions.
var levelOrder = map[Level]int{
	LevelFederal: 1,
	LevelState:   2,
	LevelCounty:  3,
	LevelCity:    4,
	LevelLocal:   5,
}

// Order returns the sort position of the level (federal=1 .. local=5).
// Unknown levels sort last.
func (l Level) Order() int {
	if o, ok := levelOrder[l]; ok {
		return o
	}
	return len(levelOrder)
}

// Valid reports whether l is one of the enumerated levels.
func (l Level) Valid() bool {
	_, ok := levelOrder[l]
	return ok
}

// ContactType classifies a point of contact.
type ContactType string

const (
	ContactOfficial  ContactType = "official"
	ContactStaff     ContactType = "staff"
	ContactGeneral   ContactType = "general"
	ContactEmergency ContactType = "emergency"
)

// ValidationStatus tracks whether a contact has been verified.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// SiteType distinguishes websites attached directly to a jurisdiction
// from those attached to a department.
type SiteType string

const (
	SiteJurisdiction SiteType = "jurisdiction"
	SiteDepartment   SiteType = "department"
)

// Jurisdiction is a governing body at a level. Name is unique within its
// level (and, sub-federally, within its state).
type Jurisdiction struct {
	ID         int64  `json:"jurisdiction_id"`
	Name       string `json:"name"`
	Level      Level  `json:"level"`
	LevelOrder int    `json:"level_order"`
	StateCode  string `json:"state_code,omitempty"`
	CountyName string `json:"county_name,omitempty"`
	CityName   string `json:"city_name,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`
}

// Department is an organizational unit under exactly one jurisdiction.
// (JurisdictionID, Name) is the natural key: re-ingestion updates the
// existing row instead of duplicating it.
type Department struct {
	ID             int64  `json:"department_id"`
	JurisdictionID int64  `json:"jurisdiction_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	WebsiteURL     string `json:"website_url,omitempty"`
	MainEmail      string `json:"main_email,omitempty"`
	MainPhone      string `json:"main_phone,omitempty"`
	AddressStreet  string `json:"address_street,omitempty"`
	AddressCity    string `json:"address_city,omitempty"`
	AddressState   string `json:"address_state,omitempty"`
	AddressZip     string `json:"address_zip,omitempty"`
}

// Contact is a point of contact attached to a department. A contact
// created purely from pattern extraction has Type general and no name.
type Contact struct {
	ID               int64            `json:"contact_id"`
	DepartmentID     int64            `json:"department_id"`
	Type             ContactType      `json:"contact_type"`
	Name             string           `json:"name,omitempty"`
	Title            string           `json:"title,omitempty"`
	Email            string           `json:"email,omitempty"`
	Phone            string           `json:"phone,omitempty"`
	Mobile           string           `json:"mobile,omitempty"`
	Fax              string           `json:"fax,omitempty"`
	OfficeLocation   string           `json:"office_location,omitempty"`
	ContactHours     string           `json:"contact_hours,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Website is a domain associated with a jurisdiction or department.
// LastScraped nil means never crawled; never-crawled sites sort first
// for scheduling.
type Website struct {
	ID             int64      `json:"website_id"`
	JurisdictionID int64      `json:"jurisdiction_id"`
	DepartmentID   *int64     `json:"department_id,omitempty"`
	Domain         string     `json:"domain"`
	FullURL        string     `json:"full_url"`
	SiteType       SiteType   `json:"site_type"`
	LastScraped    *time.Time `json:"last_scraped,omitempty"`
}
