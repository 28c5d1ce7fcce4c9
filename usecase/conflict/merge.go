package conflict

import (
	"sort"
	"time"

	"github.com/flowboard/backend/domain"
)

// descriptionSeparator joins both sides of a description when merge
// keeps the two edits.
const descriptionSeparator = "\n---\n"

// MergePatch folds the losing client patch into a patch that applies
// cleanly on the current server state. Per field, relative to the
// conflict base: a side that alone changed the field wins; when both
// changed it, the client wins scalars, tags take the union, and the
// description keeps both edits when they are non-empty and differ.
func MergePatch(base, current *domain.Task, patch domain.TaskPatch) domain.TaskPatch {
	var merged domain.TaskPatch
	if base == nil || current == nil {
		return merged
	}

	if patch.Title != nil && *patch.Title != base.Title {
		merged.Title = patch.Title
	}
	if patch.Status != nil && *patch.Status != base.Status {
		merged.Status = patch.Status
	}
	if patch.Priority != nil && *patch.Priority != base.Priority {
		merged.Priority = patch.Priority
	}
	if patch.AssignedTo != nil && *patch.AssignedTo != base.AssignedTo {
		merged.AssignedTo = patch.AssignedTo
	}
	if patch.DueDate != nil && !equalDue(patch.DueDate, base.DueDate) {
		merged.DueDate = patch.DueDate
	}

	merged.Description = mergeDescription(base, current, patch)
	merged.Tags = mergeTags(base, current, patch)
	return merged
}

func mergeDescription(base, current *domain.Task, patch domain.TaskPatch) *string {
	if patch.Description == nil || *patch.Description == base.Description {
		return nil
	}
	clientDesc := *patch.Description
	serverChanged := current.Description != base.Description

	if !serverChanged {
		return &clientDesc
	}
	if clientDesc == "" {
		return nil
	}
	if current.Description == "" || current.Description == clientDesc {
		return &clientDesc
	}
	combined := current.Description + descriptionSeparator + clientDesc
	return &combined
}

func mergeTags(base, current *domain.Task, patch domain.TaskPatch) *[]string {
	if patch.Tags == nil || equalTags(*patch.Tags, base.Tags) {
		return nil
	}
	clientTags := *patch.Tags
	serverChanged := !equalTags(current.Tags, base.Tags)

	if !serverChanged {
		out := append([]string(nil), clientTags...)
		return &out
	}

	seen := make(map[string]bool, len(current.Tags)+len(clientTags))
	union := make([]string, 0, len(current.Tags)+len(clientTags))
	for _, tag := range current.Tags {
		if !seen[tag] {
			seen[tag] = true
			union = append(union, tag)
		}
	}
	for _, tag := range clientTags {
		if !seen[tag] {
			seen[tag] = true
			union = append(union, tag)
		}
	}
	sort.Strings(union)
	return &union
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func equalDue(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
