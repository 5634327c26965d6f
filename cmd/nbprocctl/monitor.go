package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/nbproc/nbproc/internal/supervisor"
)

// runMonitor opens a full-screen TUI listing every handle sup is
// tracking, refreshing until ctx is canceled or the user quits.
func runMonitor(ctx context.Context, sup *supervisor.Supervisor) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("tcell: new screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("tcell: init: %w", err)
	}
	defer screen.Fini()

	quit := make(chan struct{})
	go pollQuit(screen, quit)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		draw(screen, sup)

		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func pollQuit(screen tcell.Screen, quit chan<- struct{}) {
	for {
		ev := screen.PollEvent()
		switch e := ev.(type) {
		case *tcell.EventKey:
			if e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC || e.Rune() == 'q' {
				close(quit)
				return
			}
		case nil:
			return
		}
	}
}

func draw(screen tcell.Screen, sup *supervisor.Supervisor) {
	screen.Clear()
	style := tcell.StyleDefault

	drawText(screen, 0, 0, style.Bold(true), "nbprocctl monitor  (q to quit)")
	drawText(screen, 0, 1, style, "ID                                   NAME                 STATE      RUNTIME")

	row := 2
	for _, e := range sup.List() {
		state := e.State().String()
		if e.IsRunning() {
			state = "running"
		}
		line := fmt.Sprintf("%-36s  %-19s  %-9s  %s", e.ID, e.Name, state, e.Runtime().Round(time.Millisecond))
		drawText(screen, 0, row, style, line)
		row++
	}
	if sup.Count() == 0 {
		drawText(screen, 0, row, style.Italic(true), "(no tracked handles)")
	}

	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range text {
		screen.SetContent(x+i, y, r, nil, style)
	}
}
