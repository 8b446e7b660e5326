package models

import (
	"time"
)

// DateDimension is one calendar date seen in any service fact
type DateDimension struct {
	Date      time.Time
	Year      int
	Quarter   int
	Month     int
	ISOYear   int
	ISOWeek   int
	DayOfWeek int // 1 = Monday ... 7 = Sunday
}

// Volunteer is a canonical person entry
type Volunteer struct {
	ID          string // canonical normalized name
	DisplayName string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// VolunteerAlias maps an alternative spelling to a canonical volunteer
type VolunteerAlias struct {
	Alias       string
	VolunteerID string
}

// ServiceType is a configured ministry role
type ServiceType struct {
	ID        string // the configured label, e.g. "sound"
	ColumnKey string
	SortOrder int
}

// SourceRow identifies one spreadsheet row by position and content checksum
type SourceRow struct {
	ID            string // <spreadsheet>:<sheet>:<row>:<sha1>
	SpreadsheetID string
	SheetName     string
	RowNumber     int
	Checksum      string
}

// ServiceFact binds one volunteer to one role on one date
type ServiceFact struct {
	FactID        string // <date>:<service_type>:<volunteer>:<row>
	VolunteerID   string
	ServiceTypeID string
	ServiceDate   time.Time
	SourceRowID   string
	IngestedAt    time.Time

	// Position in the sheet, used for deduplication order only
	RowNumber   int
	ColumnIndex int
}

// Key returns the deduplication key (date, volunteer, service type)
func (f ServiceFact) Key() string {
	return f.ServiceDate.Format(DateLayout) + "|" + f.VolunteerID + "|" + f.ServiceTypeID
}

// DateLayout is the canonical date format used in identifiers and the store
const DateLayout = "2006-01-02"
