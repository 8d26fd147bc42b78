package stage

import (
	"fmt"

	"github.com/lucasnoah/orbitqc/internal/response"
)

// ResponseSet is the job's shared, growing list of per-entity response
// documents plus a monotonically-advancing cursor. Runners from different
// platforms advance the same cursor, so their entities land at distinct,
// non-overlapping positions.
type ResponseSet struct {
	docs   []*response.Document
	cursor int
}

// NewResponseSet returns an empty set with the cursor before the first
// position.
func NewResponseSet() *ResponseSet {
	return &ResponseSet{cursor: -1}
}

// Add appends a document.
func (s *ResponseSet) Add(d *response.Document) {
	s.docs = append(s.docs, d)
}

// Advance moves the cursor one position forward and returns it.
func (s *ResponseSet) Advance() int {
	s.cursor++
	return s.cursor
}

// Current returns the document under the cursor. A cursor outside the list
// is an internal consistency violation and aborts the job.
func (s *ResponseSet) Current() (*response.Document, error) {
	if s.cursor < 0 || s.cursor >= len(s.docs) {
		return nil, &CriticalError{
			Msg: fmt.Sprintf("response cursor %d outside document list of length %d",
				s.cursor, len(s.docs)),
		}
	}
	return s.docs[s.cursor], nil
}

// Cursor returns the current cursor position.
func (s *ResponseSet) Cursor() int {
	return s.cursor
}

// Rewind moves the cursor back before the first position. The orchestrator
// calls it between stages so each stage walks the same document order.
func (s *ResponseSet) Rewind() {
	s.cursor = -1
}

// Len returns the number of documents.
func (s *ResponseSet) Len() int {
	return len(s.docs)
}

// Documents returns the underlying document list.
func (s *ResponseSet) Documents() []*response.Document {
	return s.docs
}
