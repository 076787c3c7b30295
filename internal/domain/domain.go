// Package domain holds the core types shared by the chunker, indexer,
// retriever and chat components, plus the interfaces they depend on.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocType distinguishes the synthesized whole-job summary document from
// per-section chunks.
type DocType string

const (
	DocTypeJobFull    DocType = "job_full"
	DocTypeJobSection DocType = "job_section"
)

// Section types as produced by the crawler.
const (
	SectionDescription  = "mo_ta_cong_viec"
	SectionRequirements = "yeu_cau_ung_vien"
	SectionSalary       = "thu_nhap"
	SectionBenefits     = "quyen_loi"
	SectionLocations    = "dia_diem_lam_viec"
	SectionPerks        = "phuc_loi"
	SectionOther        = "thong_tin_khac"
)

// SectionLabels maps section_type to the display label used on the source
// site, reused when composing chunk content.
var SectionLabels = map[string]string{
	SectionDescription:  "Mô tả công việc",
	SectionRequirements: "Yêu cầu ứng viên",
	SectionSalary:       "Thu nhập",
	SectionBenefits:     "Quyền lợi",
	SectionLocations:    "Địa điểm làm việc",
	SectionPerks:        "Phúc lợi",
	SectionOther:        "Thông tin khác",
}

// JobLocation is one posting location; exactly one is primary.
type JobLocation struct {
	Text    string
	Primary bool
}

// JobSection is a free-text block of the posting tagged with its type.
type JobSection struct {
	SectionType string
	Text        string
}

// JobRecord is the crawler-owned source row. The retrieval core only ever
// reads it.
type JobRecord struct {
	ID                int64
	URL               string
	Title             string
	CompanyName       string
	Locations         []JobLocation
	SalaryMin         *int64
	SalaryMax         *int64
	SalaryCurrency    string
	SalaryInterval    string
	SalaryRawText     string
	ExperienceMonths  *int
	ExperienceRawText string
	Seniority         string
	Education         string
	WorkType          string
	Deadline          *time.Time
	Sections          []JobSection
	UpdatedAt         time.Time
	CrawledAt         time.Time
}

// DocumentKey is the composite identity of a retrieval document.
// SectionType is empty for job_full documents.
type DocumentKey struct {
	JobID       int64
	DocType     DocType
	SectionType string
	ChunkIndex  int
}

// DocumentMetadata is the typed snapshot captured at index time. It can
// drift from the source row; re-indexing is the only refresh path.
type DocumentMetadata struct {
	Title       string            `json:"title,omitempty"`
	CompanyName string            `json:"company_name,omitempty"`
	Locations   []string          `json:"locations,omitempty"`
	SalaryText  string            `json:"salary_text,omitempty"`
	SalaryMin   *int64            `json:"salary_min,omitempty"`
	SalaryMax   *int64            `json:"salary_max,omitempty"`
	Seniority   string            `json:"seniority,omitempty"`
	WorkType    string            `json:"work_type,omitempty"`
	Deadline    *time.Time        `json:"deadline,omitempty"`
	URL         string            `json:"url,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Equal reports whether two snapshots carry the same metadata. Used by the
// indexer to refresh a drifted snapshot even when the chunk text is
// unchanged.
func (m *DocumentMetadata) Equal(o *DocumentMetadata) bool {
	if m.Title != o.Title || m.CompanyName != o.CompanyName ||
		m.SalaryText != o.SalaryText || m.Seniority != o.Seniority ||
		m.WorkType != o.WorkType || m.URL != o.URL {
		return false
	}
	if !int64PtrEqual(m.SalaryMin, o.SalaryMin) || !int64PtrEqual(m.SalaryMax, o.SalaryMax) {
		return false
	}
	if (m.Deadline == nil) != (o.Deadline == nil) {
		return false
	}
	if m.Deadline != nil && !m.Deadline.Equal(*o.Deadline) {
		return false
	}
	if len(m.Locations) != len(o.Locations) {
		return false
	}
	for i := range m.Locations {
		if m.Locations[i] != o.Locations[i] {
			return false
		}
	}
	if len(m.Extra) != len(o.Extra) {
		return false
	}
	for k, v := range m.Extra {
		if o.Extra[k] != v {
			return false
		}
	}
	return true
}

func int64PtrEqual(a, b *int64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// ChunkedDocument is the chunker's output: a retrieval document minus its
// embedding and timestamps.
type ChunkedDocument struct {
	Key      DocumentKey
	Content  string
	Metadata DocumentMetadata
}

// RetrievalDocument is the stored, embedded unit of search.
type RetrievalDocument struct {
	Key       DocumentKey
	Content   string
	Metadata  DocumentMetadata
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult is a retrieved document with its blended relevance score.
type SearchResult struct {
	Document RetrievalDocument
	Score    float64
}

// Filters restrict retrieval by metadata. Zero values mean "no filter".
type Filters struct {
	Locations    []string
	MinSalaryVND *int64
	MaxSalaryVND *int64
	Skills       []string
	OnlyActive   bool
}

// Session states. Idle is derived from LastActivityAt and never persisted.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// ChatSession is one conversation. UserID is nil for anonymous sessions.
type ChatSession struct {
	ID             uuid.UUID
	Token          string
	UserID         *int64
	Status         string
	Metadata       map[string]string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Idle reports whether the session has been inactive past the timeout.
// Advisory only: an idle session still accepts turns.
func (s *ChatSession) Idle(timeout time.Duration, now time.Time) bool {
	return s.Status == SessionActive && now.Sub(s.LastActivityAt) > timeout
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one append-only turn in a session. RelatedJobID is a weak
// reference and is nulled when the job is deleted.
type ChatMessage struct {
	ID           int64
	SessionID    uuid.UUID
	Role         string
	Content      string
	RelatedJobID *int64
	CreatedAt    time.Time
}
