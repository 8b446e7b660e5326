package models

// TransformedData holds everything produced by the transform phase
type TransformedData struct {
	// Dimensions
	Dates        []DateDimension
	Volunteers   []Volunteer
	Aliases      []VolunteerAlias
	ServiceTypes []ServiceType
	SourceRows   []SourceRow

	// Facts
	Facts []ServiceFact

	Stats TransformStats
}

// TransformStats counts what happened to the raw rows
type TransformStats struct {
	RowsRead          int
	RowsSkipped       int // no parseable date
	CandidateFacts    int
	DuplicatesDropped int
}
