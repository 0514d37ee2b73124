package protocol

import "time"

// Segment is a narration slice of page text proposed by the segmenter model.
// Concatenating all segment texts of a page reproduces the page verbatim.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// WordTiming marks the estimated start offset of a single spoken word.
type WordTiming struct {
	Word string  `json:"word"`
	Time float64 `json:"time"`
}

// EnhancedSegment is a Segment with reconstructed playback offsets.
type EnhancedSegment struct {
	Speaker     string       `json:"speaker"`
	Text        string       `json:"text"`
	StartTime   float64      `json:"startTime"`
	EndTime     float64      `json:"endTime"`
	WordTimings []WordTiming `json:"wordTimings,omitempty"`
}

// PageEvent is published on the bus as a page moves through the pipeline.
type PageEvent struct {
	RequestID  string    `json:"request_id"`
	PageNumber int       `json:"page_number"`
	Stage      string    `json:"stage"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectPageAccepted    = "page.process.accepted"
	SubjectPageSegmented   = "page.process.segmented"
	SubjectPageSynthesized = "page.process.synthesized"
	SubjectPageCompleted   = "page.process.completed"
	SubjectPageFailed      = "page.process.failed"
)
