package editor

import (
	"fmt"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"
)

// Editor is the termbox text area: the rendered rune buffer, the cursor
// offset into it, and the status bar. The buffer is always set from the
// CRDT session's projection; the editor itself never owns document state.
type Editor struct {
	Text      []rune
	Cursor    int
	Width     int
	Height    int
	ShowMsg   bool
	StatusMsg string
}

// NewEditor returns an empty editor.
func NewEditor() *Editor {
	return &Editor{}
}

// SetText replaces the rendered buffer, clamping the cursor to the new
// bounds.
func (e *Editor) SetText(text string) {
	e.Text = []rune(text)
	if e.Cursor > len(e.Text) {
		e.Cursor = len(e.Text)
	}
}

// SetSize sets the drawing area dimensions.
func (e *Editor) SetSize(w, h int) {
	e.Width = w
	e.Height = h
}

// SetX moves the cursor to an absolute offset, clamped to the buffer.
func (e *Editor) SetX(x int) {
	if x < 0 {
		x = 0
	}
	if x > len(e.Text) {
		x = len(e.Text)
	}
	e.Cursor = x
}

// MoveCursor shifts the cursor by dx runes and dy lines. Vertical moves
// keep the column offset where the target line allows it.
func (e *Editor) MoveCursor(dx, dy int) {
	if dy != 0 {
		e.Cursor = e.vertical(dy)
	}

	c := e.Cursor + dx
	if c < 0 {
		c = 0
	}
	if c > len(e.Text) {
		c = len(e.Text)
	}
	e.Cursor = c
}

// lineStarts returns the buffer offset of each line's first rune.
func (e *Editor) lineStarts() []int {
	starts := []int{0}
	for i, r := range e.Text {
		if r == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineEnd returns the offset just past the last rune of the line starting
// at start, excluding the newline.
func (e *Editor) lineEnd(start int) int {
	end := start
	for end < len(e.Text) && e.Text[end] != '\n' {
		end++
	}
	return end
}

// vertical returns the cursor position after moving delta lines, keeping
// the column where possible.
func (e *Editor) vertical(delta int) int {
	starts := e.lineStarts()

	line := 0
	for i, s := range starts {
		if s > e.Cursor {
			break
		}
		line = i
	}

	target := line + delta
	if target < 0 {
		return 0
	}
	if target >= len(starts) {
		return len(e.Text)
	}

	col := e.Cursor - starts[line]
	end := e.lineEnd(starts[target])
	if starts[target]+col > end {
		return end
	}
	return starts[target] + col
}

// calcXY converts a buffer offset to 1-based screen coordinates, counting
// display width per rune.
func (e *Editor) calcXY(index int) (int, int) {
	x, y := 1, 1

	if index < 0 {
		return x, y
	}
	if index > len(e.Text) {
		index = len(e.Text)
	}

	for i := 0; i < index; i++ {
		if e.Text[i] == '\n' {
			x = 1
			y++
		} else {
			x += runewidth.RuneWidth(e.Text[i])
		}
	}
	return x, y
}

// Draw repaints the buffer, the cursor and the status line.
func (e *Editor) Draw() {
	_ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)

	cx, cy := e.calcXY(e.Cursor)
	termbox.SetCursor(cx-1, cy-1)

	x, y := 0, 0
	for _, r := range e.Text {
		if r == '\n' {
			x = 0
			y++
			continue
		}
		if x < e.Width {
			termbox.SetCell(x, y, r, termbox.ColorDefault, termbox.ColorDefault)
		}
		x += runewidth.RuneWidth(r)
	}

	if e.ShowMsg {
		e.SetStatusBar()
	} else {
		e.drawPositions()
	}

	termbox.Flush()
}

// SetStatusBar paints the status message on the bottom line and arranges
// for it to fade out.
func (e *Editor) SetStatusBar() {
	e.ShowMsg = true

	for i, r := range []rune(e.StatusMsg) {
		termbox.SetCell(i, e.Height-1, r, termbox.ColorDefault, termbox.ColorDefault)
	}

	_ = time.AfterFunc(5*time.Second, func() {
		e.ShowMsg = false
	})
}

// drawPositions shows cursor coordinates on the bottom line.
func (e *Editor) drawPositions() {
	x, y := e.calcXY(e.Cursor)
	str := fmt.Sprintf("x=%d, y=%d, cursor=%d, len(text)=%d", x, y, e.Cursor, len(e.Text))

	for i, r := range []rune(str) {
		termbox.SetCell(i, e.Height-1, r, termbox.ColorDefault, termbox.ColorDefault)
	}
}
