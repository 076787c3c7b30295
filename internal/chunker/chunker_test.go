package chunker

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfinder/assistant/internal/domain"
)

func sampleJob() *domain.JobRecord {
	min := int64(20_000_000)
	max := int64(30_000_000)
	deadline := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &domain.JobRecord{
		ID:          42,
		URL:         "https://example.com/viec-lam/42",
		Title:       "Backend Engineer (Golang)",
		CompanyName: "Công ty TNHH ABC",
		Locations: []domain.JobLocation{
			{Text: "Hà Nội: Quận Cầu Giấy", Primary: true},
			{Text: "Hồ Chí Minh: Quận 1"},
		},
		SalaryMin:      &min,
		SalaryMax:      &max,
		SalaryCurrency: "VND",
		SalaryInterval: "MONTH",
		Seniority:      "Nhân viên",
		WorkType:       "Toàn thời gian",
		Deadline:       &deadline,
		Sections: []domain.JobSection{
			{SectionType: domain.SectionDescription, Text: "Phát triển backend bằng Golang. Thiết kế API cho hệ thống tuyển dụng."},
			{SectionType: domain.SectionRequirements, Text: "Có 2 năm kinh nghiệm Golang. Thành thạo PostgreSQL."},
		},
		UpdatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	c := New(800)
	job := sampleJob()

	first := c.Build(job)
	second := c.Build(job)

	require.Equal(t, first, second)
}

func TestBuildEmitsJobFullFirst(t *testing.T) {
	docs := New(800).Build(sampleJob())
	require.NotEmpty(t, docs)

	full := docs[0]
	assert.Equal(t, domain.DocTypeJobFull, full.Key.DocType)
	assert.Equal(t, "", full.Key.SectionType)
	assert.Equal(t, 0, full.Key.ChunkIndex)
	assert.Contains(t, full.Content, "Tiêu đề: Backend Engineer (Golang)")
	assert.Contains(t, full.Content, "Công ty: Công ty TNHH ABC")
	assert.Contains(t, full.Content, "Thu nhập: Từ 20 triệu đến 30 triệu /tháng")
	assert.Contains(t, full.Content, "Hạn nộp: 2026-10-01")
}

func TestBuildSectionChunkIndicesAreDense(t *testing.T) {
	job := sampleJob()
	job.Sections = []domain.JobSection{{
		SectionType: domain.SectionDescription,
		Text:        "One one one. Two two two. Three three.",
	}}

	// Tight enough that every sentence becomes its own chunk.
	docs := New(14).Build(job)
	require.Len(t, docs, 4) // job_full + 3 section chunks

	for i, doc := range docs[1:] {
		assert.Equal(t, domain.DocTypeJobSection, doc.Key.DocType)
		assert.Equal(t, domain.SectionDescription, doc.Key.SectionType)
		assert.Equal(t, i, doc.Key.ChunkIndex)
		assert.Contains(t, doc.Content, "Mục: Mô tả công việc")
	}
}

func TestBuildSkipsEmptySections(t *testing.T) {
	job := sampleJob()
	job.Sections = append(job.Sections, domain.JobSection{
		SectionType: domain.SectionBenefits,
		Text:        "   \n\n  ",
	})

	docs := New(800).Build(job)
	for _, doc := range docs {
		assert.NotEqual(t, domain.SectionBenefits, doc.Key.SectionType)
	}
}

func TestBuildSnapshotsMetadata(t *testing.T) {
	docs := New(800).Build(sampleJob())
	require.NotEmpty(t, docs)

	for _, doc := range docs {
		meta := doc.Metadata
		assert.Equal(t, "Backend Engineer (Golang)", meta.Title)
		assert.Equal(t, "Công ty TNHH ABC", meta.CompanyName)
		assert.Equal(t, []string{"Hà Nội: Quận Cầu Giấy", "Hồ Chí Minh: Quận 1"}, meta.Locations)
		assert.Equal(t, "Từ 20 triệu đến 30 triệu /tháng", meta.SalaryText)
		assert.Equal(t, "https://example.com/viec-lam/42", meta.URL)
	}
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     []string
	}{
		{
			name:     "empty",
			text:     "   ",
			maxChars: 100,
			want:     nil,
		},
		{
			name:     "fits in one chunk",
			text:     "Short section text.",
			maxChars: 100,
			want:     []string{"Short section text."},
		},
		{
			name:     "one chunk per sentence",
			text:     "One one. Two two. Three three.",
			maxChars: 12,
			want:     []string{"One one.", "Two two.", "Three three."},
		},
		{
			name:     "sentences packed greedily",
			text:     "One one. Two two. Three three.",
			maxChars: 20,
			want:     []string{"One one. Two two.", "Three three."},
		},
		{
			name:     "paragraph break preferred",
			text:     "First paragraph here\n\nSecond paragraph here",
			maxChars: 25,
			want:     []string{"First paragraph here", "Second paragraph here"},
		},
		{
			name:     "oversize sentence hard cut",
			text:     strings.Repeat("a", 25),
			maxChars: 10,
			want:     []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)},
		},
		{
			name:     "trailing text without punctuation kept",
			text:     "A full sentence. And a trailing fragment",
			maxChars: 25,
			want:     []string{"A full sentence.", "And a trailing fragment"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitText(tt.text, tt.maxChars))
		})
	}
}

// A punctuation-free Vietnamese bullet list is one long "sentence" to the
// splitter; the hard cut must not land inside a multi-byte rune, or the
// chunks are rejected by every TEXT column downstream.
func TestSplitTextHardCutKeepsValidUTF8(t *testing.T) {
	text := strings.Repeat("kỹ sư phần mềm lương 20 triệu ", 60)

	chunks := splitText(text, 800)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d is not valid UTF-8", i)
		assert.LessOrEqual(t, len(chunk), 800)
		assert.NotEmpty(t, chunk)
	}
}
