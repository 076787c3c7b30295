package chunker

import (
	"fmt"
	"strings"

	"github.com/jobfinder/assistant/internal/domain"
)

var intervalSuffixes = map[string]string{
	"MONTH": "/tháng",
	"YEAR":  "/năm",
	"HOUR":  "/giờ",
}

// FormatSalaryText renders a human readable salary line. The crawler's raw
// text wins; otherwise min/max are formatted with the site's Vietnamese
// phrasing, and "Thoả thuận" covers postings without salary data.
func FormatSalaryText(job *domain.JobRecord) string {
	if job.SalaryRawText != "" {
		return job.SalaryRawText
	}
	if job.SalaryMin == nil && job.SalaryMax == nil {
		return "Thoả thuận"
	}

	currency := strings.ToUpper(job.SalaryCurrency)
	if currency == "" {
		currency = "VND"
	}
	suffix := ""
	if s, ok := intervalSuffixes[strings.ToUpper(job.SalaryInterval)]; ok {
		suffix = " " + s
	}

	fmtAmount := func(v int64) string {
		if currency == "VND" {
			return formatMillions(v)
		}
		return fmt.Sprintf("%s %s", groupDigits(v), currency)
	}

	switch {
	case job.SalaryMin != nil && job.SalaryMax != nil:
		return fmt.Sprintf("Từ %s đến %s%s", fmtAmount(*job.SalaryMin), fmtAmount(*job.SalaryMax), suffix)
	case job.SalaryMin != nil:
		return fmt.Sprintf("Từ %s%s", fmtAmount(*job.SalaryMin), suffix)
	default:
		return fmt.Sprintf("Đến %s%s", fmtAmount(*job.SalaryMax), suffix)
	}
}

// formatMillions renders an absolute VND amount as "X triệu".
// 12_000_000 -> "12 triệu"; 12_500_000 -> "12.5 triệu".
func formatMillions(v int64) string {
	millions := float64(v) / 1_000_000
	if millions == float64(int64(millions)) {
		return fmt.Sprintf("%d triệu", int64(millions))
	}
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", millions), "0"), ".")
	return s + " triệu"
}

// groupDigits inserts thousand separators: 1234567 -> "1,234,567".
func groupDigits(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
