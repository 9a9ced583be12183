// Package tui plays a local game in the terminal.
package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
)

const hintText = "  [dimgray]enter[-] play/jump  [dimgray]tab[-] switch panel  [dimgray]t[-] toggle  [dimgray]r[-] restart  [dimgray]q[-] quit"

var (
	markColors = map[entity.Mark]tcell.Color{
		entity.X: tcell.PaletteColor(109),
		entity.O: tcell.PaletteColor(179),
	}
	winBackground = tcell.PaletteColor(60)
)

// GameUI binds a GameController to tview widgets.
type GameUI struct {
	app        *tview.Application
	controller *tictactoe.GameController

	flex   *tview.Flex
	board  *tview.Table
	status *tview.TextView
	moves  *tview.List
	toggle *tview.Button
	hint   *tview.TextView

	focusables []tview.Primitive
}

func New(app *tview.Application, controller *tictactoe.GameController) *GameUI {
	ui := &GameUI{
		app:        app,
		controller: controller,
	}

	ui.board = tview.NewTable()
	ui.board.SetBorders(true)
	ui.board.SetSelectable(true, true)
	ui.board.SetSelectedFunc(func(row, column int) {
		ui.Play(row*3 + column)
	})

	ui.status = tview.NewTextView()
	ui.status.SetTextAlign(tview.AlignCenter)

	ui.moves = tview.NewList()
	ui.moves.SetBorder(true)
	ui.moves.SetTitle(" Moves ")
	ui.moves.ShowSecondaryText(false)
	ui.moves.SetHighlightFullLine(true)
	ui.moves.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		ui.Jump(index)
	})

	ui.toggle = tview.NewButton(tictactoe.ToggleLabel)
	ui.toggle.SetSelectedFunc(ui.Toggle)

	ui.hint = tview.NewTextView()
	ui.hint.SetDynamicColors(true)
	ui.hint.SetText(hintText)

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.status, 1, 0, false).
		AddItem(ui.board, 7, 0, true).
		AddItem(ui.toggle, 1, 0, false)

	top := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(left, 15, 0, true).
		AddItem(ui.moves, 0, 1, false)

	ui.flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 1, true).
		AddItem(ui.hint, 1, 0, false)

	ui.flex.SetInputCapture(ui.handleInput)
	ui.focusables = []tview.Primitive{ui.board, ui.moves, ui.toggle}

	ui.Refresh()

	return ui
}

// Flex returns the root layout.
func (that *GameUI) Flex() *tview.Flex {
	return that.flex
}

func (that *GameUI) Controller() *tictactoe.GameController {
	return that.controller
}

// Play clicks cell i of the displayed board.
func (that *GameUI) Play(i int) {
	if _, err := that.controller.ClickCell(i); err != nil {
		that.status.SetText(err.Error())
		return
	}
	that.Refresh()
}

// Jump goes to the move shown at position of the move list.
func (that *GameUI) Jump(position int) {
	move := tictactoe.DisplayIndex(that.controller.Game(), position)
	if err := that.controller.JumpTo(move); err != nil {
		that.status.SetText(err.Error())
		return
	}
	that.Refresh()
}

func (that *GameUI) Toggle() {
	that.controller.ToggleSortOrder()
	that.Refresh()
}

func (that *GameUI) Restart() {
	that.controller = tictactoe.NewGameController(entity.NewGame(that.controller.Game().ID))
	that.Refresh()
}

// Refresh redraws every widget from the controller state.
func (that *GameUI) Refresh() {
	view := that.controller.View()

	for r, row := range view.Board.Rows {
		for c, cell := range row {
			text := " "
			if cell.Mark != entity.Empty {
				text = cell.Mark.String()
			}

			tableCell := tview.NewTableCell(" " + text + " ").
				SetAlign(tview.AlignCenter).
				SetTextColor(markColors[cell.Mark])
			if cell.Highlighted {
				tableCell.SetBackgroundColor(winBackground)
			}

			that.board.SetCell(r, c, tableCell)
		}
	}

	that.status.SetText(view.Board.Status)

	that.moves.Clear()
	selected := 0
	for position, entry := range view.Moves {
		label := entry.Label
		if entry.Current {
			label = fmt.Sprintf("[::b]%s[::-]", label)
			selected = position
		}
		that.moves.AddItem(label, "", 0, nil)
	}
	that.moves.SetCurrentItem(selected)
}

func (that *GameUI) cycleFocus() {
	for i, primitive := range that.focusables {
		if primitive.HasFocus() {
			that.app.SetFocus(that.focusables[(i+1)%len(that.focusables)])
			return
		}
	}
	that.app.SetFocus(that.board)
}

func (that *GameUI) handleInput(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyTab:
		that.cycleFocus()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q':
			that.app.Stop()
			return nil
		case 't':
			that.Toggle()
			return nil
		case 'r':
			that.Restart()
			return nil
		}
	}

	return event
}
