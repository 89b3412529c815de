package dbus

import (
	"fmt"

	"github.com/jmylchreest/wlrs/internal/control"
)

// EmitWallpaperChanged emits the WallpaperChanged signal after a bind.
func (s *Server) EmitWallpaperChanged(ch control.Change) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := s.conn.Emit(Path, Interface+".WallpaperChanged", ch.Monitor, ch.Wallpaper, ch.WallpaperID)
	if err != nil {
		return fmt.Errorf("failed to emit WallpaperChanged signal: %w", err)
	}

	s.logger.Debug("emitted WallpaperChanged signal", "monitor", ch.Monitor, "wallpaper", ch.Wallpaper)
	return nil
}

// changeFromSignal decodes a WallpaperChanged signal body.
func changeFromSignal(body []any) (control.Change, bool) {
	if len(body) != 3 {
		return control.Change{}, false
	}
	monitor, ok1 := body[0].(string)
	name, ok2 := body[1].(string)
	id, ok3 := body[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return control.Change{}, false
	}
	return control.Change{Monitor: monitor, Wallpaper: name, WallpaperID: id}, true
}
