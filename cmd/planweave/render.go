package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/planweave/planweave/internal/orchestrator"
	"github.com/planweave/planweave/internal/reason"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// printEvent streams orchestrator progress to stdout.
func printEvent(ev reason.Event) {
	switch ev.Type {
	case "text":
		fmt.Println(ev.Content)
	case "tool_use":
		fmt.Println(toolStyle.Render("→ " + ev.Tool))
	case "tool_result":
		fmt.Println(faintStyle.Render(indent(truncate(ev.Content, 400), "  ")))
	}
}

func printResult(res *orchestrator.Result) {
	fmt.Println()
	switch {
	case res.Stopped:
		fmt.Println(warnStyle.Render("stopped by signal"))
	case res.Paused:
		fmt.Println(warnStyle.Render("paused; resume with: planweave resume " + res.RunID))
	default:
		fmt.Println(doneStyle.Render("done"))
	}
	fmt.Println(faintStyle.Render(fmt.Sprintf(
		"%d iterations, %d tool calls, %d in / %d out tokens",
		res.Iterations, res.ToolCalls, res.TokensIn, res.TokensOut)))
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
