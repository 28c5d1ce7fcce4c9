package task

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/flowboard/backend/domain"
)

// validateTask checks field constraints and, when the title changed,
// the reserved-word and case-insensitive uniqueness rules.
func (uc *UseCase) validateTask(ctx context.Context, task *domain.Task, titleChanged bool) error {
	var issues []domain.ValidationIssue

	title := strings.TrimSpace(task.Title)
	if title == "" {
		issues = append(issues, domain.ValidationIssue{Field: "title", Reason: "must not be empty"})
	} else if utf8.RuneCountInString(title) > uc.limits.MaxTitleLen {
		issues = append(issues, domain.ValidationIssue{Field: "title", Reason: "too long"})
	}
	if utf8.RuneCountInString(task.Description) > uc.limits.MaxDescLen {
		issues = append(issues, domain.ValidationIssue{Field: "description", Reason: "too long"})
	}
	if !task.Status.Valid() {
		issues = append(issues, domain.ValidationIssue{Field: "status", Reason: "unknown column"})
	}
	if !task.Priority.Valid() {
		issues = append(issues, domain.ValidationIssue{Field: "priority", Reason: "unknown priority"})
	}
	if len(task.Tags) > uc.limits.MaxTags {
		issues = append(issues, domain.ValidationIssue{Field: "tags", Reason: "too many tags"})
	}
	for _, tag := range task.Tags {
		if tag == "" || utf8.RuneCountInString(tag) > uc.limits.MaxTagLen {
			issues = append(issues, domain.ValidationIssue{Field: "tags", Reason: "invalid tag"})
			break
		}
	}
	if len(issues) > 0 {
		return domain.NewValidationError(issues...)
	}

	if !titleChanged {
		return nil
	}

	normalized := domain.NormalizedTitle(title)
	for _, reserved := range uc.limits.ReservedTitles {
		if normalized == domain.NormalizedTitle(reserved) {
			return domain.NewError(domain.ErrCodeReservedTitle, "title matches a reserved column name")
		}
	}

	clash, err := uc.tasks.FindByTitle(ctx, normalized, task.ID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil
		}
		return uc.internal("title uniqueness check failed", err)
	}
	if clash != nil {
		return domain.NewError(domain.ErrCodeDuplicateTitle, "a task with this title already exists")
	}
	return nil
}
