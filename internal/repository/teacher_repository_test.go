package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery("SELECT 1 FROM teachers WHERE id = \\$1 AND active = TRUE").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM teachers WHERE id = \\$1 AND active = TRUE").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.ExistsActive(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryQualifiedForSubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "full_name", "email", "active", "created_at", "updated_at"}).
		AddRow("t2", "u2", "Teacher B", "b@example.com", true, time.Now(), time.Now()).
		AddRow("t3", "u3", "Teacher C", "c@example.com", true, time.Now(), time.Now())
	mock.ExpectQuery("JOIN teacher_subjects ts ON ts.teacher_id = t.id").
		WithArgs("math", "t1").
		WillReturnRows(rows)

	teachers, err := repo.QualifiedForSubject(context.Background(), "math", "t1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "t2", teachers[0].ID)
	assert.Equal(t, "t3", teachers[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
