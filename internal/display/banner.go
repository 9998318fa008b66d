package display

import (
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

const bannerArt = `
    _        _
   / \   ___| |_ _ __ __ _
  / _ \ / __| __| '__/ _` + "`" + ` |
 / ___ \\__ \ |_| | | (_| |
/_/   \_\___/\__|_|  \__,_|
`

// RenderBanner returns the banner art horizontally centred for the
// current terminal width.
func RenderBanner() string {
	return renderBanner(bannerArt, termWidth())
}

func renderBanner(art string, width int) string {
	lines := strings.Split(strings.Trim(art, "\n"), "\n")

	maxW := 0
	for _, l := range lines {
		maxW = max(maxW, len(l))
	}

	pad := ""
	if width > maxW {
		pad = strings.Repeat(" ", (width-maxW)/2)
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(pad)
		b.WriteString(BannerStyle.Render(l))
		b.WriteByte('\n')
	}
	b.WriteString(pad)
	b.WriteString(secondaryStyle.Render("asistente de voz para el hogar"))
	b.WriteByte('\n')
	return b.String()
}

// termWidth returns the current terminal column count, or 80 as fallback.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
