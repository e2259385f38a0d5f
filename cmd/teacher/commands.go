package main

import (
	"fmt"
	"strings"
)

// command is one line typed during a live session.
type command struct {
	name string
	args []string
}

var commandHelp = `Commands:
  find [TERM]           filter unmarked students by name or roll id (no term clears)
  mark ROLL REASON...   mark a student present manually
  extend                add time to the session
  refresh               reload the marked list now
  report                show the attendance report
  end                   end the session and show the report
  quit                  leave without ending the session
  help                  show this help`

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	c := command{name: strings.ToLower(fields[0]), args: fields[1:]}
	switch c.name {
	case "find", "extend", "refresh", "report", "end", "quit", "help":
	case "mark":
		if len(c.args) < 2 {
			return command{}, fmt.Errorf("usage: mark ROLL REASON")
		}
	case "exit", "q":
		c.name = "quit"
	default:
		return command{}, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	return c, nil
}

// reason joins the words after the roll number.
func (c command) reason() string {
	return strings.Join(c.args[1:], " ")
}

func (c command) term() string {
	return strings.Join(c.args, " ")
}
