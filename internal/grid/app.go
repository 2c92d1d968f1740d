package grid

import (
	"github.com/rs/zerolog"

	"taskdeck/internal/screen"
	"taskdeck/internal/term"
	"taskdeck/internal/theme"
)

// Run owns the interactive session: raw mode, the blocking input loop, and
// painting after every processed event. Input is strictly sequential; each
// keystroke is fully applied and rendered before the next is read.
func Run(t *term.Terminal, g *Grid, th *theme.Theme, log zerolog.Logger) error {
	if err := t.EnterRaw(); err != nil {
		return err
	}
	defer t.Restore()

	w, h, err := t.Size()
	if err != nil {
		return err
	}
	comp := screen.NewCompositor(t.Out(), w, h, th.Profile, log)
	g.SetSize(w, h)

	reader := term.NewReader(t, log)
	defer reader.Close()

	g.Draw(comp)
	comp.Render()

	for {
		ev := reader.Next()
		switch {
		case ev.Err != nil:
			return ev.Err
		case ev.Resize:
			comp.Resize(ev.Width, ev.Height)
			g.SetSize(ev.Width, ev.Height)
		default:
			if quit := g.HandleKey(ev.Key); quit {
				return nil
			}
		}
		g.Draw(comp)
		comp.Render()
	}
}
