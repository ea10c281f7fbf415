package schema

// IngestFeedEntryTable represents the 'ingest.feedentry' table
type IngestFeedEntryTable struct {
	Table       string
	ID          string
	ChapterID   string
	SeriesID    string
	Title       string
	URL         string
	PublishedAt string
	CreatedAt   string
	UpdatedAt   string
	DeletedAt   string
}

// IngestFeedEntry is the schema definition for ingest.feedentry
var IngestFeedEntry = IngestFeedEntryTable{
	Table:       "ingest.feedentry",
	ID:          "id",
	ChapterID:   "chapterid",
	SeriesID:    "seriesid",
	Title:       "title",
	URL:         "url",
	PublishedAt: "publishedat",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
	DeletedAt:   "deletedat",
}

func (t IngestFeedEntryTable) Columns() []string {
	return []string{
		t.ID, t.ChapterID, t.SeriesID, t.Title, t.URL,
		t.PublishedAt, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
