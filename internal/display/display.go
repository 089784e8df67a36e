// Package display renders the watch session on a terminal.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"tabletrace/internal/models"
)

const (
	// InlineDiffLimit caps the row diffs printed under a change line.
	InlineDiffLimit = 15

	promptClearWidth = 60
	timeLayout       = "15:04:05"
)

var (
	cyan      = color.New(color.FgCyan).SprintFunc()
	cyanBold  = color.New(color.FgCyan, color.Bold).SprintFunc()
	green     = color.New(color.FgGreen).SprintFunc()
	greenBold = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	yellowB   = color.New(color.FgYellow, color.Bold).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	redBold   = color.New(color.FgRed, color.Bold).SprintFunc()
	redStrike = color.New(color.FgRed, color.CrossedOut).SprintFunc()
	magenta   = color.New(color.FgMagenta).SprintFunc()
	white     = color.New(color.FgWhite).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
)

// Printer writes the session output to a terminal stream, usually stderr.
type Printer struct {
	out         io.Writer
	inlineLimit int
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, inlineLimit: InlineDiffLimit}
}

func (p *Printer) println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) printf(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format, a...)
}

func (p *Printer) Banner() {
	p.println()
	p.println(cyan("╔══════════════════════════════════════════════════════════╗"))
	p.println(cyan("║           TableTrace - Real-time DB Monitor              ║"))
	p.println(cyan("╚══════════════════════════════════════════════════════════╝"))
}

func (p *Printer) Connecting(target string) {
	p.println()
	p.println(dim(fmt.Sprintf("Connecting to %s...", target)))
}

func (p *Printer) Connected() {
	p.printf("%s %s\n\n", green("✓"), green("Connected!"))
}

func (p *Printer) InteractiveHint() {
	p.println()
	p.println(dim("┌─────────────────────────────────────────────────────────┐"))
	p.println(dim("│  Commands: [number] details | h help | l list | q quit  │"))
	p.println(dim("└─────────────────────────────────────────────────────────┘"))
	p.println()
}

// Prompt redraws the input prompt on the current line.
func (p *Printer) Prompt(changeCount int64) {
	if changeCount > 0 {
		p.printf("\r%s %s ", cyan(fmt.Sprintf("[%d changes]", changeCount)),
			dim("(l=list, w=watching, r=reset, q=quit) >"))
		return
	}
	p.printf("\r%s ", dim("Waiting for changes... (h=help, r=reset, q=quit) >"))
}

func (p *Printer) Help() {
	p.println()
	p.println(cyan("╭─────────────────────────────────────────╮"))
	p.println(cyan("│           Available Commands            │"))
	p.println(cyan("├─────────────────────────────────────────┤"))
	p.printf("│  %s       Show change details        │\n", yellow("1, 2, ..."))
	p.printf("│  %s            List all changes         │\n", yellow("l"))
	p.printf("│  %s            Clear history            │\n", yellow("c"))
	p.printf("│  %s            Show watching tables     │\n", yellow("w"))
	p.printf("│  %s            Reset table selection    │\n", yellow("r"))
	p.printf("│  %s            Show this help           │\n", yellow("h"))
	p.printf("│  %s            Quit                     │\n", yellow("q"))
	p.println(cyan("╰─────────────────────────────────────────╯"))
	p.println()
}

func (p *Printer) Watching(tables []models.TableID, title string) {
	p.println()
	p.printf("%s (%s)\n", cyanBold(title), plural(len(tables), "table"))
	p.tableList(tables)
	p.println()
}

// TableChoices lists the selectable tables and asks for a selection.
func (p *Printer) TableChoices(tables []models.TableID) {
	p.println()
	p.println(cyanBold("Available tables:"))
	p.tableList(tables)
	p.println()
	p.println(cyan("Select tables (e.g., 1,3,5 or 1-3 or 1,4-6), 'all', or empty to cancel:"))
	p.printf("%s ", cyan(">"))
}

func (p *Printer) tableList(tables []models.TableID) {
	for i, t := range tables {
		p.printf("  %s %s\n", cyan(fmt.Sprintf("[%d]", i+1)), t)
	}
}

func (p *Printer) Unknown(input string) {
	p.printf("%s Unknown command '%s'. Type 'h' for help.\n", yellow("?"), input)
}

func (p *Printer) NotFound(id int64) {
	p.printf("%s Change #%d not found. Type 'l' to list all changes.\n", red("✗"), id)
}

func (p *Printer) Warning(message string) {
	p.println(yellow(message))
}

func (p *Printer) Success(message string) {
	p.println(dim(message))
}

func (p *Printer) Goodbye() {
	p.println()
	p.println(cyan("Goodbye! 👋"))
}

// ConnectionError reports a fatal database error.
func (p *Printer) ConnectionError(err error) {
	p.println()
	p.printf("%s %s %v\n", redBold("✗"), red("Connection error:"), err)
	p.println(red("Exiting..."))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func rowSuffix(n int64) string {
	if n > 1 {
		return "s"
	}
	return ""
}

func colorType(changeType string) string {
	switch changeType {
	case "INSERT":
		return green(changeType)
	case "UPDATE":
		return yellow(changeType)
	case "DELETE":
		return red(changeType)
	}
	return changeType
}

func changeIcon(changeType string) (string, string) {
	if strings.Contains(changeType, "+") {
		return magenta("±"), magenta(changeType)
	}
	switch changeType {
	case "INSERT":
		return green("+"), green(changeType)
	case "UPDATE":
		return yellow("~"), yellow(changeType)
	case "DELETE":
		return red("-"), red(changeType)
	}
	return "•", changeType
}

func diffSymbol(kind models.DiffKind) string {
	switch kind {
	case models.Added:
		return greenBold("+")
	case models.Removed:
		return redBold("-")
	case models.Modified:
		return yellowB("~")
	}
	return " "
}

func valueOf(row *models.Row, column string) string {
	if row == nil {
		return models.UnknownValue
	}
	v, ok := row.Get(column)
	if !ok {
		return models.UnknownValue
	}
	return v
}
