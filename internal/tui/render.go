package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/tui/styles"
	"github.com/Iron-Ham/dossier/internal/util"
)

// pipeline lists the stages shown as tabs.
var pipeline = []research.Stage{
	research.StagePlanning,
	research.StageResearching,
	research.StageReporting,
	research.StageCompleted,
}

func stageIndex(s research.Stage) int {
	return slices.Index(research.AllStages(), s)
}

// renderHeader shows the topic and the run status.
func renderHeader(s research.RunState, spin string, width int) string {
	title := "dossier"
	if s.Topic != "" {
		title = fmt.Sprintf("dossier · %s", s.Topic)
	}

	status := string(s.Status)
	badge := lipgloss.NewStyle().Foreground(styles.StatusColor(status)).
		Render(styles.StatusIcon(status) + " " + status)
	if s.Status == research.StatusRunning && spin != "" {
		badge = spin + " " + badge
	}

	meta := []string{}
	if s.KnowledgeBase != "" {
		meta = append(meta, "kb "+s.KnowledgeBase)
	}
	if s.PlanMode != "" {
		meta = append(meta, string(s.PlanMode))
	}
	line := title + "  " + badge
	if len(meta) > 0 {
		line += "  " + styles.Subtitle.Render(strings.Join(meta, " · "))
	}
	if width > 0 {
		line = util.TruncateANSI(line, width)
	}
	return styles.Header.Width(max(width, 1)).Render(line)
}

// renderStages draws one tab per pipeline stage.
func renderStages(current research.Stage) string {
	cur := stageIndex(current)
	tabs := make([]string, 0, len(pipeline))
	for _, st := range pipeline {
		idx := stageIndex(st)
		switch {
		case idx == cur:
			tabs = append(tabs, styles.StageActive.Render(st.String()))
		case idx < cur:
			tabs = append(tabs, styles.StageDone.Render("✓ "+st.String()))
		default:
			tabs = append(tabs, styles.StagePending.Render(st.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderPlanning lists the topic rewrite and the sub-topics found so far.
func renderPlanning(s research.RunState) string {
	var b strings.Builder
	b.WriteString(styles.SectionTitle.Render("Planning"))
	b.WriteString("\n")
	if p := s.Planning.OptimizedTopic; p != "" {
		fmt.Fprintf(&b, "  topic: %s\n", p)
	} else if p := s.Planning.OriginalTopic; p != "" {
		fmt.Fprintf(&b, "  topic: %s\n", p)
	}
	if len(s.Planning.SubTopics) == 0 {
		b.WriteString(styles.Muted.Render("  decomposing topic..."))
		return b.String()
	}
	for i, st := range s.Planning.SubTopics {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, st.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

// TaskLine formats one task without styling. It is shared with the line
// printer.
func TaskLine(t research.TaskState) string {
	line := fmt.Sprintf("%s %s", styles.StatusIcon(string(t.Status)), taskLabel(t))
	if t.MaxIterations > 0 {
		line += fmt.Sprintf(" (%d/%d)", t.Iteration, t.MaxIterations)
	}
	if t.CurrentAction != "" && !t.Status.IsTerminal() {
		line += " · " + t.CurrentAction
	}
	if t.CurrentTool != "" && t.Status == research.TaskRunning {
		line += " [" + t.CurrentTool + "]"
	}
	return line
}

func taskLabel(t research.TaskState) string {
	if t.Topic != "" {
		return t.Topic
	}
	return t.ID
}

// renderTasks lists every task with its status and latest thought.
func renderTasks(s research.RunState) string {
	var b strings.Builder
	r := s.Researching
	title := "Research"
	if r.TotalBlocks > 0 {
		title = fmt.Sprintf("Research %d/%d", r.CompletedBlocks, r.TotalBlocks)
	}
	b.WriteString(styles.SectionTitle.Render(title))

	tasks := s.OrderedTasks()
	if len(tasks) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("  waiting for tasks..."))
		return b.String()
	}
	for _, t := range tasks {
		style := styles.TaskItem.Foreground(styles.StatusColor(string(t.Status)))
		if s.IsActive(t.ID) {
			style = style.Bold(true)
		}
		b.WriteString("\n")
		b.WriteString(style.Render(TaskLine(t)))
		if n := len(t.Thoughts); n > 0 && !t.Status.IsTerminal() {
			last := t.Thoughts[n-1]
			b.WriteString("\n")
			b.WriteString(styles.TaskDetail.Render(fmt.Sprintf("%s: %s", last.Type, util.Truncate(util.SingleLine(last.Content), 100))))
		}
	}
	return b.String()
}

// renderReporting shows section progress and the outline.
func renderReporting(s research.RunState) string {
	var b strings.Builder
	rep := s.Reporting
	b.WriteString(styles.SectionTitle.Render("Report"))
	b.WriteString("\n")
	if rep.TotalSections > 0 {
		fmt.Fprintf(&b, "  section %d/%d", min(rep.SectionIndex+1, rep.TotalSections), rep.TotalSections)
		if rep.CurrentSectionTitle != "" {
			fmt.Fprintf(&b, ": %s", rep.CurrentSectionTitle)
		}
		b.WriteString("\n")
	}
	if rep.WordCount > 0 {
		fmt.Fprintf(&b, "  %d words\n", rep.WordCount)
	}
	for _, o := range rep.Outline {
		fmt.Fprintf(&b, "  - %s\n", o)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderBody picks the view for the current stage.
func renderBody(s research.RunState, report func(string) string) string {
	switch {
	case s.Status == research.StatusIdle && s.Error != "":
		return styles.ErrorMsg.Render("Run failed: " + s.Error)
	case s.Status == research.StatusIdle:
		return styles.Muted.Render("No run in progress.")
	case s.Stage == research.StageCompleted:
		return styles.SuccessMsg.Render("Report ready") + "\n" + styles.ReportBox.Render(report(s.Report))
	case s.Stage == research.StageReporting:
		return renderReporting(s)
	case s.Stage == research.StageResearching:
		return renderTasks(s)
	case s.Stage == research.StagePlanning:
		return renderPlanning(s)
	default:
		return styles.Muted.Render("Connecting...")
	}
}
