// tictactoe-tui plays a local game with time travel in the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/rivo/tview"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tui"
)

func main() {
	app := tview.NewApplication()
	controller := tictactoe.NewGameController(entity.NewGame(pkg.GenerateNewSessionID()))
	gameUI := tui.New(app, controller)

	app.EnableMouse(true)

	if err := app.SetRoot(gameUI.Flex(), true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tictactoe-tui: %v\n", err)
		os.Exit(1)
	}
}
