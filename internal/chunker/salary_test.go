package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobfinder/assistant/internal/domain"
)

func TestFormatSalaryText(t *testing.T) {
	i64 := func(v int64) *int64 { return &v }

	tests := []struct {
		name string
		job  domain.JobRecord
		want string
	}{
		{
			name: "raw text wins",
			job: domain.JobRecord{
				SalaryRawText: "Lên tới 35 triệu",
				SalaryMin:     i64(20_000_000),
			},
			want: "Lên tới 35 triệu",
		},
		{
			name: "no salary data",
			job:  domain.JobRecord{},
			want: "Thoả thuận",
		},
		{
			name: "vnd range per month",
			job: domain.JobRecord{
				SalaryMin:      i64(12_000_000),
				SalaryMax:      i64(18_500_000),
				SalaryCurrency: "VND",
				SalaryInterval: "MONTH",
			},
			want: "Từ 12 triệu đến 18.5 triệu /tháng",
		},
		{
			name: "min only defaults to vnd",
			job: domain.JobRecord{
				SalaryMin:      i64(25_000_000),
				SalaryInterval: "MONTH",
			},
			want: "Từ 25 triệu /tháng",
		},
		{
			name: "max only",
			job: domain.JobRecord{
				SalaryMax:      i64(30_000_000),
				SalaryCurrency: "VND",
			},
			want: "Đến 30 triệu",
		},
		{
			name: "foreign currency grouped",
			job: domain.JobRecord{
				SalaryMin:      i64(1_500),
				SalaryMax:      i64(2_000),
				SalaryCurrency: "USD",
				SalaryInterval: "MONTH",
			},
			want: "Từ 1,500 USD đến 2,000 USD /tháng",
		},
		{
			name: "unknown interval has no suffix",
			job: domain.JobRecord{
				SalaryMin:      i64(10_000_000),
				SalaryInterval: "PROJECT",
			},
			want: "Từ 10 triệu",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSalaryText(&tt.job))
		})
	}
}
