package autosave

import "reflect"

// Window is a node in the host's UI tree.
type Window interface {
	FindWindowByID(id uint32) Window
	IsVisible() bool
	Parent() Window
}

// WindowSource gives access to the host's root window. MainWindow may return nil
// while the UI is not up.
type WindowSource interface {
	MainWindow() Window
}

// Host window IDs that decide whether saving is safe.
const (
	WindowOptionsButton  uint32 = 0x010ED852
	WindowOptions        uint32 = 0x0615B50D
	WindowSpaceComm      uint32 = 0x01C3BB0C
	WindowSpaceCommTrade uint32 = 0x0755F180
	WindowSpaceCommAlly  uint32 = 0x076B3543
	WindowMessageBox     uint32 = 0x01510D07
)

// WindowGuard vetoes saves while the host UI is in a state where saving is unsafe:
// an excluded window is showing, or a required window is not.
type WindowGuard struct {
	Source   WindowSource
	Required []uint32
	Excluded []uint32
}

// DefaultWindowGuard requires the options button and excludes the options window,
// the space communication panels and message boxes.
func DefaultWindowGuard(src WindowSource) *WindowGuard {
	return &WindowGuard{
		Source:   src,
		Required: []uint32{WindowOptionsButton},
		Excluded: []uint32{
			WindowOptions,
			WindowSpaceComm,
			WindowSpaceCommTrade,
			WindowSpaceCommAlly,
			WindowMessageBox,
		},
	}
}

// Allows reports whether the UI permits a save. Missing windows count as hidden, so a host
// without a UI never satisfies a required window.
func (g *WindowGuard) Allows() bool {
	var main Window
	if g.Source != nil {
		main = g.Source.MainWindow()
	}

	for _, id := range g.Excluded {
		if shown(find(main, id)) {
			return false
		}
	}
	for _, id := range g.Required {
		if !shown(find(main, id)) {
			return false
		}
	}
	return true
}

func find(main Window, id uint32) Window {
	if isNil(main) {
		return nil
	}
	return main.FindWindowByID(id)
}

// shown reports whether w and all of its ancestors are visible.
func shown(w Window) bool {
	if isNil(w) {
		return false
	}
	for ; !isNil(w); w = w.Parent() {
		if !w.IsVisible() {
			return false
		}
	}
	return true
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(w Window) bool {
	if w == nil {
		return true
	}
	v := reflect.ValueOf(w)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
