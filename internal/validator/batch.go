package validator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// trailing detail after ": " is dropped so warnings about different values group together
var issueDetail = regexp.MustCompile(`:\s.*$`)

// ValidateBatch validates every message and summarizes the outcome.
func (v *Validator) ValidateBatch(msgs []domain.PaymentMessage) ([]domain.ValidationResult, domain.ValidationSummary) {
	results := make([]domain.ValidationResult, len(msgs))
	for i, msg := range msgs {
		results[i] = v.Validate(msg)
	}
	return results, Summarize(results)
}

// Summarize aggregates validation results.
func Summarize(results []domain.ValidationResult) domain.ValidationSummary {
	summary := domain.ValidationSummary{TotalMessages: len(results)}
	for _, r := range results {
		if r.IsValid {
			summary.ValidMessages++
		}
		summary.TotalErrors += len(r.Errors)
		summary.TotalWarnings += len(r.Warnings)
	}
	summary.InvalidMessages = summary.TotalMessages - summary.ValidMessages
	if summary.TotalMessages > 0 {
		summary.ValidationRate = float64(summary.ValidMessages) / float64(summary.TotalMessages) * 100
	}
	return summary
}

// CommonIssues counts recurring errors by code and field, and warnings by their
// normalized text. Entries are ordered by descending count, then by name.
func CommonIssues(results []domain.ValidationResult) domain.CommonIssues {
	errCounts := make(map[string]int)
	warnCounts := make(map[string]int)

	for _, r := range results {
		for _, e := range r.Errors {
			key := string(e.Code)
			if e.Field != "" {
				key += " (" + e.Field + ")"
			}
			errCounts[key]++
		}
		for _, w := range r.Warnings {
			warnCounts[NormalizeIssue(w)]++
		}
	}

	return domain.CommonIssues{
		Errors:   rank(errCounts),
		Warnings: rank(warnCounts),
	}
}

// NormalizeIssue strips the message-specific detail from an issue text.
func NormalizeIssue(issue string) string {
	return strings.TrimSpace(issueDetail.ReplaceAllString(issue, ""))
}

func rank(counts map[string]int) []domain.IssueCount {
	out := make([]domain.IssueCount, 0, len(counts))
	for issue, n := range counts {
		out = append(out, domain.IssueCount{Issue: issue, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Issue < out[j].Issue
	})
	return out
}
