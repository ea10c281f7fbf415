package schema

// IngestChapterSourceTable represents the 'ingest.chaptersource' table
type IngestChapterSourceTable struct {
	Table           string
	ID              string
	ChapterID       string
	SourceID        string
	SourceChapterID string
	SourceURL       string
	Title           string
	PublishedAt     string
	CreatedAt       string
	UpdatedAt       string
	DeletedAt       string
}

// IngestChapterSource is the schema definition for ingest.chaptersource.
//
// SourceChapterID is nullable text with no length limit: some upstreams use
// multi-kilobyte content hashes, older ones predate the field entirely.
var IngestChapterSource = IngestChapterSourceTable{
	Table:           "ingest.chaptersource",
	ID:              "id",
	ChapterID:       "chapterid",
	SourceID:        "sourceid",
	SourceChapterID: "sourcechapterid",
	SourceURL:       "sourceurl",
	Title:           "title",
	PublishedAt:     "publishedat",
	CreatedAt:       "createdat",
	UpdatedAt:       "updatedat",
	DeletedAt:       "deletedat",
}

func (t IngestChapterSourceTable) Columns() []string {
	return []string{
		t.ID, t.ChapterID, t.SourceID, t.SourceChapterID, t.SourceURL,
		t.Title, t.PublishedAt, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
