package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowboard/backend/domain"
)

func ptr[T any](v T) *T { return &v }

func baseTask() *domain.Task {
	return &domain.Task{
		ID:          "t1",
		Title:       "base title",
		Description: "base description",
		Status:      domain.StatusTodo,
		Priority:    domain.PriorityMedium,
		Tags:        []string{"api"},
		Version:     3,
	}
}

func TestMergePatchClientOnlyChanges(t *testing.T) {
	base := baseTask()
	current := base.Clone()

	merged := MergePatch(base, current, domain.TaskPatch{
		Title:    ptr("client title"),
		Priority: ptr(domain.PriorityUrgent),
	})

	assert.Equal(t, "client title", *merged.Title)
	assert.Equal(t, domain.PriorityUrgent, *merged.Priority)
	assert.Nil(t, merged.Description)
	assert.Nil(t, merged.Tags)
}

func TestMergePatchDropsNoopFields(t *testing.T) {
	base := baseTask()
	current := base.Clone()
	current.Title = "server title"

	// A patch that restates the base value is not a client change.
	merged := MergePatch(base, current, domain.TaskPatch{
		Title:       ptr("base title"),
		Description: ptr("base description"),
		Tags:        ptr([]string{"api"}),
	})

	assert.Nil(t, merged.Title)
	assert.Nil(t, merged.Description)
	assert.Nil(t, merged.Tags)
}

func TestMergePatchScalarClientWins(t *testing.T) {
	base := baseTask()
	current := base.Clone()
	current.Priority = domain.PriorityLow

	merged := MergePatch(base, current, domain.TaskPatch{Priority: ptr(domain.PriorityUrgent)})
	assert.Equal(t, domain.PriorityUrgent, *merged.Priority)
}

func TestMergeDescription(t *testing.T) {
	tests := []struct {
		name   string
		server string
		client *string
		want   *string
	}{
		{"client untouched", "server edit", nil, nil},
		{"server untouched", "base description", ptr("client edit"), ptr("client edit")},
		{"client cleared", "server edit", ptr(""), nil},
		{"identical edits", "same", ptr("same"), ptr("same")},
		{"both edited", "server edit", ptr("client edit"), ptr("server edit\n---\nclient edit")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := baseTask()
			current := base.Clone()
			current.Description = tt.server

			merged := MergePatch(base, current, domain.TaskPatch{Description: tt.client})
			if tt.want == nil {
				assert.Nil(t, merged.Description)
				return
			}
			assert.Equal(t, *tt.want, *merged.Description)
		})
	}
}

func TestMergeTagsUnion(t *testing.T) {
	base := baseTask()
	current := base.Clone()
	current.Tags = []string{"api", "db"}

	merged := MergePatch(base, current, domain.TaskPatch{Tags: ptr([]string{"api", "urgent"})})
	assert.Equal(t, []string{"api", "db", "urgent"}, *merged.Tags)
}

func TestMergeTagsClientOnly(t *testing.T) {
	base := baseTask()
	current := base.Clone()

	merged := MergePatch(base, current, domain.TaskPatch{Tags: ptr([]string{"urgent"})})
	assert.Equal(t, []string{"urgent"}, *merged.Tags)
}

func TestMergeDueDate(t *testing.T) {
	base := baseTask()
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	base.DueDate = &due
	current := base.Clone()

	same := due
	merged := MergePatch(base, current, domain.TaskPatch{DueDate: &same})
	assert.Nil(t, merged.DueDate)

	later := due.Add(48 * time.Hour)
	merged = MergePatch(base, current, domain.TaskPatch{DueDate: &later})
	assert.True(t, merged.DueDate.Equal(later))
}
