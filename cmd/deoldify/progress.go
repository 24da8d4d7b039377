package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/born-ml/deoldify/colorize"
)

const barWidth = 30

// newProgress returns a progress callback drawing a bar on w, and a
// function finishing the line. Both are no-ops unless w is a terminal.
func newProgress(w io.Writer, label string) (colorize.ProgressFunc, func()) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, func() {}
	}

	last := -1
	update := func(percent float64) {
		n := int(percent)
		if n == last {
			return
		}
		last = n
		filled := n * barWidth / 100
		fmt.Fprintf(f, "\r%s [%s%s] %3d%%", label, strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled), n)
	}
	return update, func() {
		if last >= 0 {
			fmt.Fprintln(f)
		}
	}
}
