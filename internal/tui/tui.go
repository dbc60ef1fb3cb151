// Package tui is a terminal browser for discovered partitions, script
// variables and the loaded U-Boot environment.
package tui

import (
	"fmt"

	units "github.com/docker/go-units"
	tcell "github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"

	"bootenvtool/internal/probe"
	"bootenvtool/internal/script"
	"bootenvtool/internal/ubootenv"
)

// View selects what the browser lists.
type View int

const (
	ViewPartitions View = iota
	ViewVariables
	ViewEnvironment
	viewCount
)

var viewTitles = [viewCount]string{
	ViewPartitions:  "Partitions",
	ViewVariables:   "Script Variables",
	ViewEnvironment: "U-Boot Environment",
}

func (v View) String() string {
	if v >= 0 && v < viewCount {
		return viewTitles[v]
	}
	return "Unknown"
}

// Data is what the browser shows. It is not refreshed while browsing.
type Data struct {
	Partitions []probe.Partition
	Variables  []script.Variable
	Env        []ubootenv.Var
}

// Canvas is the part of tcell.Screen the browser draws on.
type Canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (width, height int)
}

// Browser holds the navigation state.
type Browser struct {
	data     Data
	view     View
	selected [viewCount]int
}

// New returns a browser positioned on the partition list.
func New(data Data) *Browser {
	return &Browser{data: data}
}

// View returns the current view.
func (b *Browser) View() View { return b.view }

// Selected returns the selected row of the current view.
func (b *Browser) Selected() int { return b.selected[b.view] }

func (b *Browser) count() int {
	switch b.view {
	case ViewPartitions:
		return len(b.data.Partitions)
	case ViewVariables:
		return len(b.data.Variables)
	case ViewEnvironment:
		return len(b.data.Env)
	}
	return 0
}

func (b *Browser) rows() []string {
	var rows []string
	switch b.view {
	case ViewPartitions:
		for _, p := range b.data.Partitions {
			rows = append(rows, fmt.Sprintf("%-20s %-4s %-36s %10s  %s",
				p.Path, p.Scheme, p.ID, units.BytesSize(float64(p.Size())), p.Name))
		}
	case ViewVariables:
		for _, v := range b.data.Variables {
			rows = append(rows, fmt.Sprintf("%s=%s", v.Name, v.Value))
		}
	case ViewEnvironment:
		for _, v := range b.data.Env {
			rows = append(rows, fmt.Sprintf("%s=%s", v.Name, v.Value))
		}
	}
	return rows
}

// status describes the selected row.
func (b *Browser) status() string {
	i := b.Selected()
	if i >= b.count() {
		return "Nothing to show"
	}
	switch b.view {
	case ViewPartitions:
		p := b.data.Partitions[i]
		return fmt.Sprintf("%s on %s, type %s, start LBA %d, %d sectors", p.Path, p.Disk, p.Type, p.StartLBA, p.Sectors)
	case ViewVariables:
		v := b.data.Variables[i]
		return fmt.Sprintf("%s (%s)", v.Name, v.Kind)
	case ViewEnvironment:
		v := b.data.Env[i]
		return fmt.Sprintf("%s: %d bytes", v.Name, len(v.Value))
	}
	return ""
}

func (b *Browser) move(delta int) {
	n := b.count()
	if n == 0 {
		return
	}
	i := b.selected[b.view] + delta
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	b.selected[b.view] = i
}

// HandleKey applies a key press and reports whether the browser should
// exit.
func (b *Browser) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		b.move(-1)
	case tcell.KeyDown:
		b.move(1)
	case tcell.KeyPgUp:
		b.move(-10)
	case tcell.KeyPgDn:
		b.move(10)
	case tcell.KeyHome:
		b.move(-b.count())
	case tcell.KeyEnd:
		b.move(b.count())
	case tcell.KeyTab, tcell.KeyRight:
		b.view = (b.view + 1) % viewCount
	case tcell.KeyBacktab, tcell.KeyLeft:
		b.view = (b.view + viewCount - 1) % viewCount
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return true
		case 'k':
			b.move(-1)
		case 'j':
			b.move(1)
		}
	}
	return false
}

func drawText(c Canvas, x, y int, text string, style tcell.Style) int {
	width, _ := c.Size()
	for _, ch := range text {
		if x >= width {
			break
		}
		c.SetContent(x, y, ch, nil, style)
		x++
	}
	return x
}

func centered(c Canvas, y int, text string, style tcell.Style) {
	width, _ := c.Size()
	x := (width - len(text)) / 2
	if x < 0 {
		x = 0
	}
	drawText(c, x, y, text, style)
}

// Draw renders the current view. The layout is a title, the list, a status
// line and a key help line.
func (b *Browser) Draw(c Canvas) {
	width, height := c.Size()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c.SetContent(x, y, ' ', nil, tcell.StyleDefault)
		}
	}

	centered(c, 0, fmt.Sprintf("=== %s ===", b.view), tcell.StyleDefault.Bold(true))

	rows := b.rows()
	listHeight := height - 4
	if len(rows) == 0 {
		centered(c, 2, "No entries", tcell.StyleDefault.Dim(true))
	}
	top := 0
	if sel := b.Selected(); listHeight > 0 && sel >= listHeight {
		top = sel - listHeight + 1
	}
	for i := top; i < len(rows) && i-top < listHeight; i++ {
		style, prefix := tcell.StyleDefault, "  "
		if i == b.Selected() {
			style = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
			prefix = "> "
		}
		drawText(c, 0, 2+i-top, prefix+rows[i], style)
	}

	statusY := height - 2
	reverse := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		c.SetContent(x, statusY, ' ', nil, reverse)
	}
	drawText(c, 0, statusY, b.status(), reverse)

	centered(c, height-1, "↑↓: Navigate | Tab/←→: Switch view | Q/Esc: Quit", tcell.StyleDefault.Dim(true))
}

// Run drives the browser on an initialized screen until the user quits.
func (b *Browser) Run(screen tcell.Screen) {
	for {
		b.Draw(screen)
		screen.Show()

		switch ev := screen.PollEvent().(type) {
		case *tcell.EventKey:
			if b.HandleKey(ev) {
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		case nil:
			return
		}
	}
}

// Browse opens the terminal and runs a browser over data.
func Browse(data Data) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return errors.Wrap(err, "failed to create screen")
	}
	if err := screen.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize screen")
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack))
	screen.Clear()
	New(data).Run(screen)
	return nil
}

// Lines returns the rows of a view as plain text, for non-interactive use.
func Lines(data Data, v View) []string {
	b := New(data)
	b.view = v
	return b.rows()
}
