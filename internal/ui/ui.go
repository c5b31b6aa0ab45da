// Package ui holds the terminal output styles shared by the CLI commands.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func render(style lipgloss.Style, s string) string {
	if os.Getenv("NO_COLOR") != "" {
		return s
	}
	return style.Render(s)
}

// RenderAccent highlights headings and key values.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderPass marks a success line.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn marks a partial-failure line.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail marks an error line.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderDim de-emphasizes secondary details.
func RenderDim(s string) string { return render(dimStyle, s) }
