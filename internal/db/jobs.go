package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jobfinder/assistant/internal/apperr"
	"github.com/jobfinder/assistant/internal/domain"
)

// GetJob reads one job with its locations and sections from the
// crawler-owned tables. The retrieval core never writes these.
func (db *DB) GetJob(ctx context.Context, jobID int64) (*domain.JobRecord, error) {
	job := &domain.JobRecord{}
	err := db.pool.QueryRow(ctx,
		`SELECT j.id, j.url, j.title,
		        COALESCE(c.name, ''),
		        j.salary_min, j.salary_max,
		        COALESCE(j.salary_currency, ''), COALESCE(j.salary_interval, ''),
		        COALESCE(j.salary_raw_text, ''),
		        j.experience_months, COALESCE(j.experience_raw_text, ''),
		        COALESCE(j.cap_bac, ''), COALESCE(j.hoc_van, ''),
		        COALESCE(j.hinh_thuc_lam_viec, ''),
		        j.deadline, j.updated_at, j.crawled_at
		 FROM jobs j
		 LEFT JOIN companies c ON j.company_id = c.id
		 WHERE j.id = $1`,
		jobID,
	).Scan(
		&job.ID, &job.URL, &job.Title, &job.CompanyName,
		&job.SalaryMin, &job.SalaryMax, &job.SalaryCurrency, &job.SalaryInterval,
		&job.SalaryRawText, &job.ExperienceMonths, &job.ExperienceRawText,
		&job.Seniority, &job.Education, &job.WorkType,
		&job.Deadline, &job.UpdatedAt, &job.CrawledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("job %d", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}

	if job.Locations, err = db.jobLocations(ctx, jobID); err != nil {
		return nil, err
	}
	if job.Sections, err = db.jobSections(ctx, jobID); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobsUpdatedSince drives the incremental re-index sweep.
func (db *DB) ListJobsUpdatedSince(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM jobs
		 WHERE updated_at >= $1 OR crawled_at >= $1
		 ORDER BY id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list updated jobs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NullifyMessageJobRefs clears the weak related_job_id reference on chat
// messages when a job is deleted.
func (db *DB) NullifyMessageJobRefs(ctx context.Context, jobID int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE chat_messages SET related_job_id = NULL WHERE related_job_id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to nullify message job refs: %w", err)
	}
	return nil
}

func (db *DB) jobLocations(ctx context.Context, jobID int64) ([]domain.JobLocation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT location_text, is_primary
		 FROM job_locations
		 WHERE job_id = $1
		 ORDER BY is_primary DESC, sort_order, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job locations: %w", err)
	}
	defer rows.Close()

	var locations []domain.JobLocation
	for rows.Next() {
		var loc domain.JobLocation
		if err := rows.Scan(&loc.Text, &loc.Primary); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (db *DB) jobSections(ctx context.Context, jobID int64) ([]domain.JobSection, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT section_type, COALESCE(text_content, '')
		 FROM job_sections
		 WHERE job_id = $1
		 ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.JobSection
	for rows.Next() {
		var sec domain.JobSection
		if err := rows.Scan(&sec.SectionType, &sec.Text); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		if sec.Text != "" {
			sections = append(sections, sec)
		}
	}
	return sections, rows.Err()
}
