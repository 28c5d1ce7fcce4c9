package task

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/backend/domain"
)

func TestAddCommentDoesNotBumpVersion(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "discussed", domain.StatusTodo)

	res, err := f.uc.AddComment(context.Background(), task.ID, "  looks good  ", actor("bob"))
	require.NoError(t, err)

	require.Len(t, res.Task.Comments, 1)
	assert.Equal(t, "looks good", res.Task.Comments[0].Text)
	assert.Equal(t, "bob", res.Task.Comments[0].Author)
	assert.Equal(t, int64(1), res.Task.Version)

	stored, err := f.store.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Contains(t, f.publisher.kinds(), domain.EventTaskCommented)
}

func TestAddCommentValidation(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "discussed", domain.StatusTodo)

	_, err := f.uc.AddComment(context.Background(), task.ID, "   ", actor("bob"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = f.uc.AddComment(context.Background(), task.ID, strings.Repeat("x", 501), actor("bob"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = f.uc.AddComment(context.Background(), task.ID, strings.Repeat("x", 500), actor("bob"))
	assert.NoError(t, err)
}

func TestArchiveTask(t *testing.T) {
	f := newFixture(t)
	archived := f.mustCreate(t, "first", domain.StatusTodo)
	below := f.mustCreate(t, "second", domain.StatusTodo)

	res, err := f.uc.ArchiveTask(context.Background(), archived.ID, actor("alice"))
	require.NoError(t, err)

	assert.True(t, res.Task.IsArchived)
	assert.Equal(t, "alice", res.Task.ArchivedBy)
	assert.NotNil(t, res.Task.ArchivedAt)
	assert.Equal(t, int64(2), res.Task.Version)
	assert.Contains(t, f.publisher.kinds(), domain.EventTaskArchived)

	// The column compacts behind the archived task.
	stored, err := f.store.GetByID(context.Background(), below.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Position)
}

func TestArchiveFreesTheTitle(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "Reusable Title", domain.StatusTodo)

	_, err := f.uc.ArchiveTask(context.Background(), task.ID, actor("alice"))
	require.NoError(t, err)

	_, err = f.uc.CreateTask(context.Background(), CreateInput{Title: "reusable title"}, actor("bob"))
	assert.NoError(t, err)
}

func TestArchiveRequiresCreatorOrAdmin(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "owned by alice", domain.StatusTodo)

	_, err := f.uc.ArchiveTask(context.Background(), task.ID, actor("bob"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	_, err = f.uc.ArchiveTask(context.Background(), task.ID, adminActor("bob"))
	assert.NoError(t, err)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	deleted := f.mustCreate(t, "first", domain.StatusTodo)
	below := f.mustCreate(t, "second", domain.StatusTodo)

	_, err := f.uc.DeleteTask(context.Background(), deleted.ID, actor("alice"))
	require.NoError(t, err)

	_, err = f.store.GetByID(context.Background(), deleted.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	stored, err := f.store.GetByID(context.Background(), below.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Position)
	assert.Contains(t, f.publisher.kinds(), domain.EventTaskDeleted)
}

func TestDeleteRequiresCreatorOrAdmin(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "owned by alice", domain.StatusTodo)

	_, err := f.uc.DeleteTask(context.Background(), task.ID, actor("bob"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
}

func TestDeleteArchivedTaskIsNotFound(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "gone", domain.StatusTodo)

	_, err := f.uc.ArchiveTask(context.Background(), task.ID, actor("alice"))
	require.NoError(t, err)

	_, err = f.uc.DeleteTask(context.Background(), task.ID, actor("alice"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}
