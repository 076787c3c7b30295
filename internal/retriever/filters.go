package retriever

import (
	"strings"

	"github.com/jobfinder/assistant/internal/domain"
)

// passesFilters applies the metadata predicate to one document. The
// semantics are deliberately permissive: a document missing the filtered
// attribute passes rather than being dropped.
func passesFilters(doc *domain.RetrievalDocument, f *domain.Filters) bool {
	return locationPass(doc, f.Locations) &&
		salaryPass(doc, f.MinSalaryVND, f.MaxSalaryVND) &&
		skillsPass(doc, f.Skills)
}

func locationPass(doc *domain.RetrievalDocument, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join(doc.Metadata.Locations, " ") + " " + doc.Content)
	for _, loc := range wanted {
		loc = strings.ToLower(strings.TrimSpace(loc))
		if loc != "" && strings.Contains(haystack, loc) {
			return true
		}
	}
	return false
}

// salaryPass checks range overlap. Jobs with no salary data pass — being
// strict here would drop every "Thoả thuận" posting.
func salaryPass(doc *domain.RetrievalDocument, fMin, fMax *int64) bool {
	if fMin == nil && fMax == nil {
		return true
	}
	sMin, sMax := doc.Metadata.SalaryMin, doc.Metadata.SalaryMax
	if sMin == nil && sMax == nil {
		return true
	}

	low, high := sMin, sMax
	if low == nil {
		low = sMax
	}
	if high == nil {
		high = sMin
	}

	if fMin != nil && high != nil && *high < *fMin {
		return false
	}
	if fMax != nil && low != nil && *low > *fMax {
		return false
	}
	return true
}

func skillsPass(doc *domain.RetrievalDocument, skills []string) bool {
	if len(skills) == 0 {
		return true
	}
	content := strings.ToLower(doc.Content)
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill != "" && strings.Contains(content, skill) {
			return true
		}
	}
	return false
}
