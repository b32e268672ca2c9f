package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castline/castline/internal/db/models"
)

var jobCols = []string{"id", "director_id", "title", "location", "status", "deadline", "created_at", "director_trust_score"}

func TestListOpenJobs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	now := time.Now()
	deadline := now.Add(48 * time.Hour)

	mock.ExpectQuery("SELECT .* FROM jobs j\\s+JOIN accounts d").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow("job-1", "dir-1", "Lead role", "Berlin", "OPEN", deadline, now, 80).
			AddRow("job-2", "dir-2", "Extra", nil, "OPEN", nil, now, 10))

	jobs, err := repo.ListOpenJobs(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, 80, jobs[0].DirectorTrustScore)
	require.NotNil(t, jobs[0].Location)
	assert.Equal(t, "Berlin", *jobs[0].Location)
	assert.Equal(t, models.JobStatusOpen, jobs[1].Status)
	assert.Nil(t, jobs[1].Deadline)
}

func TestListOpenJobs_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	mock.ExpectQuery("SELECT .* FROM jobs").WillReturnRows(sqlmock.NewRows(jobCols))

	jobs, err := repo.ListOpenJobs(context.Background(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestListOpenJobs_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	mock.ExpectQuery("SELECT .* FROM jobs").WillReturnError(errDB)

	_, err := repo.ListOpenJobs(context.Background(), time.Now())
	assert.Error(t, err)
}
