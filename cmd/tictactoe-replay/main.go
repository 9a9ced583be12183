// tictactoe-replay plays a sequence of cells and prints the resulting game.
//
// Usage:
//
//	tictactoe-replay [-jump N] [-reversed] CELL...
//
// Cells are indexes 0..8, row by row, and may also be given comma separated.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
)

var errNoCells = errors.New("no cells given")

func main() {
	if err := run(os.Args[1:], termenv.NewOutput(os.Stdout)); err != nil {
		fmt.Fprintf(os.Stderr, "tictactoe-replay: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, out *termenv.Output) error {
	flags := flag.NewFlagSet("tictactoe-replay", flag.ContinueOnError)
	flags.SetOutput(out)
	jump := flags.Int("jump", -1, "jump to this move after replaying")
	reversed := flags.Bool("reversed", false, "list moves in descending order")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cells, err := parseCells(flags.Args())
	if err != nil {
		return err
	}

	controller := tictactoe.NewGameController(entity.NewGame("replay"))

	for _, cell := range cells {
		applied, err := controller.ClickCell(cell)
		if err != nil {
			return fmt.Errorf("cell %d: %w", cell, err)
		}
		if !applied {
			fmt.Fprintln(out, out.String(fmt.Sprintf("cell %d ignored", cell)).Faint())
		}
	}

	if *jump >= 0 {
		if err = controller.JumpTo(*jump); err != nil {
			return fmt.Errorf("jump %d: %w", *jump, err)
		}
	}

	if *reversed {
		controller.ToggleSortOrder()
	}

	printView(out, controller.View())

	return nil
}

func parseCells(args []string) ([]int, error) {
	var cells []int

	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}

			cell, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid cell %q: %w", field, err)
			}
			cells = append(cells, cell)
		}
	}

	if len(cells) == 0 {
		return nil, errNoCells
	}

	return cells, nil
}

// printView draws the board with the winning line highlighted, then the
// status and the move list.
func printView(out *termenv.Output, view tictactoe.GameView) {
	for r, row := range view.Board.Rows {
		if r > 0 {
			fmt.Fprintln(out, "---+---+---")
		}

		squares := make([]string, 0, len(row))
		for _, cell := range row {
			text := " "
			if cell.Mark != entity.Empty {
				text = cell.Mark.String()
			}

			style := out.String(" " + text + " ")
			if cell.Highlighted {
				style = style.Foreground(out.Color("14")).Bold()
			}
			squares = append(squares, style.String())
		}

		fmt.Fprintln(out, strings.Join(squares, "|"))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, out.String(view.Board.Status).Bold())
	fmt.Fprintln(out)

	for _, move := range view.Moves {
		marker := "  "
		label := out.String(move.Label)
		if move.Current {
			marker = "> "
			label = label.Underline()
		}

		fmt.Fprintf(out, "%s%s\n", marker, label)
	}
}
