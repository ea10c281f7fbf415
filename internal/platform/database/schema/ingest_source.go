package schema

// IngestSourceTable represents the 'ingest.source' table
type IngestSourceTable struct {
	Table            string
	ID               string
	SeriesID         string
	Name             string
	SourceIDExt      string
	SourceURL        string
	TrustScore       string
	ConsecutiveFails string
	IsActive         string
	CreatedAt        string
	UpdatedAt        string
	DeletedAt        string
}

// IngestSource is the schema definition for ingest.source
var IngestSource = IngestSourceTable{
	Table:            "ingest.source",
	ID:               "id",
	SeriesID:         "seriesid",
	Name:             "name",
	SourceIDExt:      "sourceid_ext",
	SourceURL:        "sourceurl",
	TrustScore:       "trustscore",
	ConsecutiveFails: "consecutivefails",
	IsActive:         "isactive",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
	DeletedAt:        "deletedat",
}

func (t IngestSourceTable) Columns() []string {
	return []string{
		t.ID, t.SeriesID, t.Name, t.SourceIDExt, t.SourceURL, t.TrustScore,
		t.ConsecutiveFails, t.IsActive, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
