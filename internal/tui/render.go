package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Shanky048/WisePal/pkg/models"
)

var (
	userBubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("93")).
			Padding(0, 1)

	assistantBubbleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("237")).
				Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// messageRenderer lays out the chat display list for a given width
type messageRenderer struct {
	markdown bool
	width    int
	glam     *glamour.TermRenderer
}

func newMessageRenderer(markdown bool) *messageRenderer {
	return &messageRenderer{markdown: markdown}
}

// SetWidth rebuilds the Markdown renderer when the width changes
func (r *messageRenderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.glam = nil
	if !r.markdown {
		return
	}
	glam, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(r.bubbleWidth()),
	)
	if err == nil {
		r.glam = glam
	}
}

// bubbleWidth is the widest a message may be, three quarters of the view
func (r *messageRenderer) bubbleWidth() int {
	w := r.width * 3 / 4
	if w < 20 {
		w = 20
	}
	return w
}

// Render returns the whole list, user messages right-aligned and assistant
// messages left-aligned
func (r *messageRenderer) Render(messages []models.Message) string {
	if len(messages) == 0 {
		return emptyStyle.Render("No messages yet. Say hello!")
	}

	var s strings.Builder
	for i, msg := range messages {
		if msg.Role == models.RoleUser {
			s.WriteString(r.renderUser(msg.Content))
		} else {
			s.WriteString(r.renderAssistant(msg.Content))
		}
		if i < len(messages)-1 {
			s.WriteString("\n\n")
		}
	}
	return s.String()
}

func (r *messageRenderer) renderUser(content string) string {
	bubble := userBubbleStyle.Render(strings.Join(wrapText(content, r.bubbleWidth()-2), "\n"))
	return lipgloss.NewStyle().
		Width(r.width).
		Align(lipgloss.Right).
		Render(bubble)
}

func (r *messageRenderer) renderAssistant(content string) string {
	if r.glam != nil {
		if out, err := r.glam.Render(content); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return assistantBubbleStyle.Render(strings.Join(wrapText(content, r.bubbleWidth()-2), "\n"))
}

// wrapText wraps text to fit within the specified width. Line breaks in the
// input are kept.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		currentLine := words[0]
		for _, word := range words[1:] {
			if lipgloss.Width(currentLine)+1+lipgloss.Width(word) > width {
				lines = append(lines, currentLine)
				currentLine = word
			} else {
				currentLine += " " + word
			}
		}
		lines = append(lines, currentLine)
	}

	return lines
}
