package schema

// IngestChapterTable represents the 'ingest.chapter' table
type IngestChapterTable struct {
	Table         string
	ID            string
	SeriesID      string
	ChapterNumber string
	ChapterSlug   string
	CreatedAt     string
	DeletedAt     string
}

// IngestChapter is the schema definition for ingest.chapter.
//
// ChapterNumber holds the canonical decimal string, never a float: numeric
// identity is exact string equality. ChapterNumber and ChapterSlug are
// mutually exclusive; each carries its own partial unique index per series.
var IngestChapter = IngestChapterTable{
	Table:         "ingest.chapter",
	ID:            "id",
	SeriesID:      "seriesid",
	ChapterNumber: "chapternumber",
	ChapterSlug:   "chapterslug",
	CreatedAt:     "createdat",
	DeletedAt:     "deletedat",
}

func (t IngestChapterTable) Columns() []string {
	return []string{t.ID, t.SeriesID, t.ChapterNumber, t.ChapterSlug, t.CreatedAt, t.DeletedAt}
}
