package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/atelierbr/jiragate/internal/jiragate/tracking"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func renderHistory(entries []tracking.HistoryEntry, days int) string {
	var builder strings.Builder

	title := "Issue History"
	if days > 0 {
		title = fmt.Sprintf("Issue History (last %d days)", days)
	}
	builder.WriteString(titleStyle.Render(title) + "\n")

	if len(entries) == 0 {
		builder.WriteString("No tracked issues found.\n")
		return builder.String()
	}

	for _, entry := range entries {
		builder.WriteString(fmt.Sprintf("%s %s", keyStyle.Render(entry.Key), entry.Title))
		if entry.Status != "" {
			builder.WriteString(fmt.Sprintf(" [%s]", entry.Status))
		}
		builder.WriteString("\n")

		details := []string{fmt.Sprintf("type: %s", entry.Type)}
		if entry.ParentKey != "" {
			parent := entry.ParentKey
			if entry.ParentTitle != "" {
				parent = fmt.Sprintf("%s (%s)", entry.ParentKey, entry.ParentTitle)
			}
			details = append(details, "parent: "+parent)
		}
		if entry.CommentsCount > 0 {
			details = append(details, fmt.Sprintf("%d comments", entry.CommentsCount))
		}
		details = append(details, "created: "+entry.CreatedAt.Format("2006-01-02 15:04"))
		builder.WriteString(mutedStyle.Render("  "+strings.Join(details, " | ")) + "\n")
	}

	return builder.String()
}

func renderStatistics(stats *tracking.Statistics) string {
	var builder strings.Builder

	builder.WriteString(titleStyle.Render("Issue Statistics") + "\n")

	builder.WriteString("By type:\n")
	writeCounts(&builder, stats.IssuesByType)
	builder.WriteString("By status:\n")
	writeCounts(&builder, stats.IssuesByStatus)

	builder.WriteString("Comments:\n")
	builder.WriteString(fmt.Sprintf("  total: %d\n", stats.Comments.Total))
	builder.WriteString(fmt.Sprintf("  issues with comments: %d\n", stats.Comments.IssuesWithComments))
	builder.WriteString(fmt.Sprintf("  unique commenters: %d\n", stats.Comments.UniqueCommenters))

	return builder.String()
}

func writeCounts(builder *strings.Builder, counts map[string]int) {
	if len(counts) == 0 {
		builder.WriteString(mutedStyle.Render("  none") + "\n")
		return
	}

	groups := make([]string, 0, len(counts))
	for group := range counts {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		builder.WriteString(fmt.Sprintf("  %s: %d\n", group, counts[group]))
	}
}
