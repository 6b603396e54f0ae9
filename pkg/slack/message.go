package slack

import (
	"fmt"
	"strings"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

const (
	maxBlockTextLength = 2900
	maxListedActions   = 3
)

var statusEmoji = map[string]string{
	"completed": ":white_check_mark:",
	"failed":    ":x:",
	"cancelled": ":no_entry_sign:",
}

var statusLabel = map[string]string{
	"completed": "Analysis Complete",
	"failed":    "Analysis Failed",
	"cancelled": "Analysis Cancelled",
}

func analysisURL(taskID, dashboardURL string) string {
	return fmt.Sprintf("%s/analyses/%s", strings.TrimRight(dashboardURL, "/"), taskID)
}

// TaskFingerprint is the text every notification for a task carries, used to
// find the task's thread in channel history.
func TaskFingerprint(taskID string) string {
	return "task " + taskID
}

// fallbackText is the plain-text body sent alongside the blocks. It is what
// conversations.history returns, so it must contain the fingerprint.
func fallbackText(taskID, filename, label string) string {
	return fmt.Sprintf("%s: %s (%s)", label, filename, TaskFingerprint(taskID))
}

// BuildStartedMessage creates Block Kit blocks for an analysis start notification.
func BuildStartedMessage(taskID, filename, dashboardURL string) []goslack.Block {
	url := analysisURL(taskID, dashboardURL)
	text := fmt.Sprintf(":arrows_counterclockwise: *Analysis started* for `%s`\n_%s_\n<%s|View in Dashboard>",
		filename, TaskFingerprint(taskID), url)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// BuildTerminalMessage creates Block Kit blocks for a finished analysis.
func BuildTerminalMessage(input AnalysisCompletedInput, dashboardURL string) []goslack.Block {
	emoji := statusEmoji[input.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[input.Status]
	if label == "" {
		label = "Analysis " + input.Status
	}

	headerText := fmt.Sprintf("%s *%s*", emoji, label)
	if input.Filename != "" {
		headerText += fmt.Sprintf(" for `%s`", input.Filename)
	}
	if input.Status != "completed" && input.ErrorMessage != "" {
		headerText += fmt.Sprintf("\n\n*Error:*\n%s", truncateForSlack(input.ErrorMessage))
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if input.Status == "completed" && input.Result != nil {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(summaryText(input.Result)), false, false),
			nil, nil,
		))
	}

	buttonText := "View Full Analysis"
	if input.Status != "completed" {
		buttonText = "View Details"
	}
	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, buttonText, false, false))
	btn.URL = analysisURL(input.TaskID, dashboardURL)
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

// summaryText renders the headline numbers of a result and its top recommendations.
func summaryText(r *models.AnalysisResult) string {
	s := r.Summary
	var b strings.Builder

	if s.DataQualityScore != nil {
		fmt.Fprintf(&b, "*Data quality:* %.0f%%", *s.DataQualityScore*100)
		if s.InsufficientData {
			b.WriteString(" (insufficient data)")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "*Insights:* %d (%d high confidence)\n", s.InsightsFound, s.HighConfidenceInsights)
	fmt.Fprintf(&b, "*Charts:* %d\n", s.ChartsGenerated)
	fmt.Fprintf(&b, "*Recommendations:* %d", s.RecommendationsCount)
	if len(s.FailedStages) > 0 {
		fmt.Fprintf(&b, "\n*Failed stages:* %s", strings.Join(s.FailedStages, ", "))
	}

	if r.Recommendations != nil && len(r.Recommendations.Recommendations) > 0 {
		b.WriteString("\n\n*Top actions:*")
		for i, rec := range r.Recommendations.Recommendations {
			if i == maxListedActions {
				break
			}
			fmt.Fprintf(&b, "\n• [%s] %s", rec.Priority, rec.Title)
		}
	}
	return b.String()
}

// truncateForSlack caps text at maxBlockTextLength runes.
func truncateForSlack(text string) string {
	if utf8.RuneCountInString(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated, view the full analysis in the dashboard)_"
}
