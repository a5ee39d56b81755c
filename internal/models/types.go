package models

// ProgressAction is the kind of progress change a client requests
type ProgressAction string

const (
	ProgressActionUpdate      ProgressAction = "update"
	ProgressActionNow         ProgressAction = "now"
	ProgressActionInThePast   ProgressAction = "in_the_past"
	ProgressActionJustStarted ProgressAction = "just_started"
)

// Stats counts stored records
type Stats struct {
	Metadata      int              `json:"metadata"`
	MetadataByLot map[MediaLot]int `json:"metadata_by_lot"`
	Underway      int              `json:"underway"`
	Completed     int              `json:"completed"`
}

// MediaListPageSize is the number of entries on one page of a user's media list
const MediaListPageSize = 20

// MediaList is one page of the entries a user tracks
type MediaList struct {
	Items []Metadata `json:"items"`
	// Total counts every tracked entry of the lot, not just this page
	Total int `json:"total"`
}
