// Package chunker converts a job record into its ordered retrieval
// documents: one job_full summary plus per-section chunks. The
// transformation is deterministic so re-indexing unchanged source text is a
// no-op for the document store.
package chunker

import (
	"fmt"
	"strings"

	"github.com/jobfinder/assistant/internal/domain"
)

const excerptMaxChars = 160

// Chunker builds retrieval documents under a maximum chunk length.
type Chunker struct {
	maxChars int
}

// New creates a Chunker. maxChars bounds a single chunk's section text.
func New(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 800
	}
	return &Chunker{maxChars: maxChars}
}

// Build produces the ordered document sequence for a job: the job_full
// document first, then section chunks in section order with dense zero-based
// indices per section.
func (c *Chunker) Build(job *domain.JobRecord) []domain.ChunkedDocument {
	meta := snapshotMetadata(job)

	docs := []domain.ChunkedDocument{{
		Key: domain.DocumentKey{
			JobID:      job.ID,
			DocType:    domain.DocTypeJobFull,
			ChunkIndex: 0,
		},
		Content:  c.overviewContent(job),
		Metadata: meta,
	}}

	for _, section := range job.Sections {
		chunks := splitText(section.Text, c.maxChars)
		for idx, chunkText := range chunks {
			docs = append(docs, domain.ChunkedDocument{
				Key: domain.DocumentKey{
					JobID:       job.ID,
					DocType:     domain.DocTypeJobSection,
					SectionType: section.SectionType,
					ChunkIndex:  idx,
				},
				Content:  sectionContent(job, section.SectionType, chunkText),
				Metadata: meta,
			})
		}
	}
	return docs
}

// overviewContent renders the job_full document: the posting's headline
// facts plus a condensed excerpt of every section, for broad matching.
func (c *Chunker) overviewContent(job *domain.JobRecord) string {
	lines := []string{"Tiêu đề: " + job.Title}
	if job.CompanyName != "" {
		lines = append(lines, "Công ty: "+job.CompanyName)
	}
	if locs := locationTexts(job); len(locs) > 0 {
		lines = append(lines, "Địa điểm: "+strings.Join(locs, " | "))
	}
	lines = append(lines, "Thu nhập: "+FormatSalaryText(job))
	if job.ExperienceRawText != "" {
		lines = append(lines, "Kinh nghiệm: "+job.ExperienceRawText)
	} else if job.ExperienceMonths != nil {
		lines = append(lines, fmt.Sprintf("Kinh nghiệm: từ %d tháng trở lên", *job.ExperienceMonths))
	}
	if job.Seniority != "" {
		lines = append(lines, "Cấp bậc: "+job.Seniority)
	}
	if job.Education != "" {
		lines = append(lines, "Học vấn: "+job.Education)
	}
	if job.WorkType != "" {
		lines = append(lines, "Hình thức làm việc: "+job.WorkType)
	}
	if job.Deadline != nil {
		lines = append(lines, "Hạn nộp: "+job.Deadline.Format("2006-01-02"))
	}
	for _, section := range job.Sections {
		excerpt := condense(section.Text)
		if excerpt == "" {
			continue
		}
		lines = append(lines, sectionLabel(section.SectionType)+": "+excerpt)
	}
	return strings.Join(lines, "\n")
}

// sectionContent prefixes a section chunk with enough job context to stand
// alone when retrieved in isolation.
func sectionContent(job *domain.JobRecord, sectionType, chunkText string) string {
	lines := []string{"Công việc: " + job.Title}
	if job.CompanyName != "" {
		lines = append(lines, "Công ty: "+job.CompanyName)
	}
	if locs := locationTexts(job); len(locs) > 0 {
		lines = append(lines, "Địa điểm: "+strings.Join(locs, " | "))
	}
	lines = append(lines, "Thu nhập: "+FormatSalaryText(job))
	lines = append(lines, "Mục: "+sectionLabel(sectionType))
	if job.Deadline != nil {
		lines = append(lines, "Hạn nộp: "+job.Deadline.Format("2006-01-02"))
	}
	lines = append(lines, "Nội dung: "+chunkText)
	return strings.Join(lines, "\n")
}

func sectionLabel(sectionType string) string {
	if label, ok := domain.SectionLabels[sectionType]; ok {
		return label
	}
	words := strings.Split(strings.ReplaceAll(sectionType, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// condense reduces a section to its first sentence, capped at
// excerptMaxChars.
func condense(text string) string {
	sentences := splitText(text, excerptMaxChars)
	if len(sentences) == 0 {
		return ""
	}
	first := sentences[0]
	if len(first) > excerptMaxChars {
		first = first[:excerptMaxChars]
	}
	return first
}

func locationTexts(job *domain.JobRecord) []string {
	texts := make([]string, 0, len(job.Locations))
	for _, loc := range job.Locations {
		if strings.TrimSpace(loc.Text) != "" {
			texts = append(texts, loc.Text)
		}
	}
	return texts
}

func snapshotMetadata(job *domain.JobRecord) domain.DocumentMetadata {
	meta := domain.DocumentMetadata{
		Title:       job.Title,
		CompanyName: job.CompanyName,
		Locations:   locationTexts(job),
		SalaryText:  FormatSalaryText(job),
		SalaryMin:   job.SalaryMin,
		SalaryMax:   job.SalaryMax,
		Seniority:   job.Seniority,
		WorkType:    job.WorkType,
		Deadline:    job.Deadline,
		URL:         job.URL,
	}
	extra := map[string]string{}
	if job.Education != "" {
		extra["hoc_van"] = job.Education
	}
	if job.ExperienceRawText != "" {
		extra["experience"] = job.ExperienceRawText
	}
	if len(extra) > 0 {
		meta.Extra = extra
	}
	return meta
}
