package domain

import "sort"

// Record is one item returned by the Signal provide API: a message or a
// thread, depending on the endpoint.
type Record struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Priority  any    `json:"priority"`
	Subject   string `json:"subject"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	TLP       string `json:"tlp"`
}

// Heading returns the subject for messages and the title for threads.
func (r Record) Heading() string {
	if r.Subject != "" {
		return r.Subject
	}
	return r.Title
}

// Restricted reports whether the record must not leave the Signal platform.
func (r Record) Restricted() bool {
	return r.TLP == TLPRed
}

// Edited reports whether the record was updated after it was published.
func (r Record) Edited() bool {
	return r.CreatedAt != r.UpdatedAt
}

const TLPRed = "RED"

type Endpoint string

const (
	EndpointMessages Endpoint = "messages"
	EndpointThreads  Endpoint = "threads"
	EndpointFeed     Endpoint = "feed"
)

// Valid reports whether e names a supported source.
func (e Endpoint) Valid() bool {
	switch e {
	case EndpointMessages, EndpointThreads, EndpointFeed:
		return true
	}
	return false
}

// WatermarkLayout is the format of persisted watermarks and of the
// timestamps the Signal API returns.
const WatermarkLayout = "2006/01/02 15:04"

// DefaultWatermark is used when no watermark has been persisted yet.
const DefaultWatermark = "2022/01/31 00:00"

// SortByID orders records by ascending id, keeping the source order of equal
// ids.
func SortByID(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}
