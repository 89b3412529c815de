package monitor

import (
	"image"
	"log/slog"
	"time"

	"github.com/jmylchreest/wlrs/internal/compositor"
	"github.com/jmylchreest/wlrs/internal/effect"
	"github.com/jmylchreest/wlrs/internal/model"
)

// binding is one wallpaper instance on one output. It is the renderer a
// scheduler drives; once unbound it is never touched again.
type binding struct {
	outputID  string
	wallpaper *model.Wallpaper
	states    map[string]*effect.State
	comp      *compositor.Compositor
	target    *image.RGBA
	presenter Presenter
	logger    *slog.Logger
}

func newBinding(out Output, w *model.Wallpaper, states map[string]*effect.State, sources compositor.SourceResolver, presenter Presenter, logger *slog.Logger) *binding {
	return &binding{
		outputID:  out.ID,
		wallpaper: w,
		states:    states,
		comp:      compositor.New(sources, logger.With("wallpaper", w.Name())),
		target:    image.NewRGBA(image.Rect(0, 0, out.Width, out.Height)),
		presenter: presenter,
		logger:    logger,
	}
}

// Advance moves every effect state forward by dt.
func (b *binding) Advance(dt time.Duration, now time.Time) {
	for _, st := range b.states {
		st.Advance(dt, now)
	}
}

// Render composites one frame and hands it to the presenter.
func (b *binding) Render(now time.Time) error {
	frame, _ := b.comp.Composite(b.wallpaper, b.states, b.target)
	if b.presenter == nil {
		return nil
	}
	return b.presenter.Present(b.outputID, frame)
}

// resize reallocates the target after an output mode change. Effect state is
// kept, so the animation continues at the new size.
func (b *binding) resize(width, height int) {
	if b.target.Rect.Dx() == width && b.target.Rect.Dy() == height {
		return
	}
	b.target = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (b *binding) snapshot() map[string]*effect.State {
	out := make(map[string]*effect.State, len(b.states))
	for name, st := range b.states {
		out[name] = st.Clone()
	}
	return out
}
