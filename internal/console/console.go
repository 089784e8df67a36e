// Package console reads interactive commands from a line-oriented input and
// parses them.
package console

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// InputBuffer is the capacity of the channel returned by StartReader.
const InputBuffer = 10

type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandQuit
	CommandHelp
	CommandList
	CommandClear
	CommandReselect
	CommandWatching
	CommandDetail
	CommandUnknown
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind
	ID   int64  // CommandDetail
	Text string // trimmed input
}

// StartReader forwards every line of r into the returned channel until r is
// exhausted, then closes it. A full channel blocks the reader.
func StartReader(r io.Reader, buffer int) <-chan string {
	if buffer <= 0 {
		buffer = InputBuffer
	}
	lines := make(chan string, buffer)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// ParseCommand maps a trimmed, case-sensitive input line to a command.
func ParseCommand(line string) Command {
	text := strings.TrimSpace(line)
	cmd := Command{Text: text}

	switch text {
	case "":
		cmd.Kind = CommandNone
	case "q", "quit", "exit":
		cmd.Kind = CommandQuit
	case "h", "help":
		cmd.Kind = CommandHelp
	case "l", "list":
		cmd.Kind = CommandList
	case "c", "clear":
		cmd.Kind = CommandClear
	case "r", "reset", "reselect":
		cmd.Kind = CommandReselect
	case "w", "watching":
		cmd.Kind = CommandWatching
	default:
		id, err := strconv.ParseUint(text, 10, 63)
		if err != nil {
			cmd.Kind = CommandUnknown
			return cmd
		}
		cmd.Kind = CommandDetail
		cmd.ID = int64(id)
	}
	return cmd
}

// IsAll reports whether a selection expression selects every table.
func IsAll(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), "all")
}

// ParseSelection turns a 1-based selection expression such as "1,3-5" into
// 0-based indices into a list of max items, in first-seen order without
// duplicates. Range ends are clamped to [1, max]. A single zero or a number
// past max is reported through warn and dropped. Malformed tokens are skipped.
func ParseSelection(input string, max int, warn func(n int)) []int {
	var indices []int
	seen := make(map[int]bool)
	add := func(n int) {
		idx := n - 1
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			bounds := strings.Split(part, "-")
			if len(bounds) != 2 {
				continue
			}
			start, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
			end, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err1 != nil || err2 != nil {
				continue
			}
			if start < 1 {
				start = 1
			}
			if end > max {
				end = max
			}
			for n := start; n <= end; n++ {
				add(n)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			continue
		}
		switch {
		case n == 0 || n > max:
			if warn != nil {
				warn(n)
			}
		default:
			add(n)
		}
	}
	return indices
}
