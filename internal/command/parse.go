// Package command implements the operator command channel.
//
// A feeder goroutine reads lines from the operator's input, parses them and
// hands each command to the event loop, where it runs against the engine
// like any other request. The feeder never touches object state. End of
// input interrupts the loop.
//
//	read /3303/0/5700
//	write /3201/0/5550 true
//	write /3201/0 5750="Porch light" 5551=false
//	exec /3303/0/5605
//	reset /3201/0/5750
//	list [3201]
//	discover 3201
//	acl 3201 0 1 rw
//	persist
//	help
//	quit
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/engine"
)

// Verb names an operator command.
type Verb string

// Operator commands.
const (
	VerbRead     Verb = "read"
	VerbWrite    Verb = "write"
	VerbExec     Verb = "exec"
	VerbReset    Verb = "reset"
	VerbList     Verb = "list"
	VerbDiscover Verb = "discover"
	VerbACL      Verb = "acl"
	VerbPersist  Verb = "persist"
	VerbHelp     Verb = "help"
	VerbQuit     Verb = "quit"
)

var aliases = map[string]Verb{
	"execute": VerbExec,
	"ls":      VerbList,
	"exit":    VerbQuit,
	"?":       VerbHelp,
}

// Usage is printed by the help command.
const Usage = `commands:
  read PATH                    read a resource (/oid/iid/rid) or instance (/oid/iid)
  write /oid/iid/rid VALUE     write one resource
  write /oid/iid RID=VALUE...  write several resources in one transaction
  exec PATH [ARGS]             execute a resource
  reset PATH                   restore a resource's default value
  list [OID]                   list objects, or the instances of one object
  discover OID                 list the resources of an object
  acl OID IID SSID MASK        set an access entry (mask: rwedc letters or number, 0 removes)
  persist                      save persistent state now
  help                         show this text
  quit                         stop the agent`

// Command is a parsed operator command.
type Command struct {
	Verb   Verb
	Path   device.Path
	Value  device.Value
	Values map[device.ResourceID]device.Value
	Args   string

	// SSID and Mask are set by acl.
	SSID uint16
	Mask engine.Mask
}

// Parse parses one input line. Values are read with device.ParseValue, so
// text in double quotes is always a string.
func Parse(line string) (Command, error) {
	word, rest := cut(line)
	if word == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrUsage)
	}

	verb := Verb(strings.ToLower(word))
	if alias, ok := aliases[string(verb)]; ok {
		verb = alias
	}
	cmd := Command{Verb: verb}

	var err error
	switch verb {
	case VerbRead:
		cmd.Path, err = parsePath(rest, 2, 3)
		if err == nil && !onlyOne(rest) {
			err = fmt.Errorf("%w: read PATH", ErrUsage)
		}

	case VerbWrite:
		err = parseWrite(&cmd, rest)

	case VerbExec:
		p, args := cut(rest)
		cmd.Path, err = parsePath(p, 3, 3)
		cmd.Args = args

	case VerbReset:
		cmd.Path, err = parsePath(rest, 3, 3)
		if err == nil && !onlyOne(rest) {
			err = fmt.Errorf("%w: reset PATH", ErrUsage)
		}

	case VerbList:
		if rest != "" {
			cmd.Path, err = parseObject(rest)
		}

	case VerbDiscover:
		cmd.Path, err = parseObject(rest)

	case VerbACL:
		err = parseACL(&cmd, rest)

	case VerbPersist, VerbHelp, VerbQuit:
		if rest != "" {
			err = fmt.Errorf("%w: %s takes no arguments", ErrUsage, verb)
		}

	default:
		return Command{}, fmt.Errorf("%w: %q (try help)", ErrUnknownCommand, word)
	}

	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseWrite(cmd *Command, rest string) error {
	p, value := cut(rest)
	path, err := parsePath(p, 2, 3)
	if err != nil {
		return err
	}
	cmd.Path = path
	if value == "" {
		return fmt.Errorf("%w: write PATH VALUE", ErrUsage)
	}

	if path.Depth() == 3 {
		cmd.Value = device.ParseValue(value)
		return nil
	}

	tokens, err := fields(value)
	if err != nil {
		return err
	}
	cmd.Values = make(map[device.ResourceID]device.Value, len(tokens))
	for _, tok := range tokens {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || v == "" {
			return fmt.Errorf("%w: expected RID=VALUE, got %q", ErrUsage, tok)
		}
		rid, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			return fmt.Errorf("%w: resource id %q", ErrUsage, k)
		}
		cmd.Values[device.ResourceID(rid)] = device.ParseValue(v)
	}
	return nil
}

func parseACL(cmd *Command, rest string) error {
	args := strings.Fields(rest)
	if len(args) != 4 {
		return fmt.Errorf("%w: acl OID IID SSID MASK", ErrUsage)
	}
	path, err := parsePath(args[0]+"/"+args[1], 2, 2)
	if err != nil {
		return err
	}
	ssid, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: ssid %q", ErrUsage, args[2])
	}
	mask, err := engine.ParseMask(args[3])
	if err != nil {
		return err
	}
	cmd.Path, cmd.SSID, cmd.Mask = path, uint16(ssid), mask
	return nil
}

func parsePath(s string, minDepth, maxDepth int) (device.Path, error) {
	word, _ := cut(s)
	if word == "" {
		return device.Path{}, fmt.Errorf("%w: missing path", ErrUsage)
	}
	p, err := device.ParsePath(word)
	if err != nil {
		return device.Path{}, err
	}
	if p.Depth() < minDepth || p.Depth() > maxDepth {
		want := "/oid/iid/rid"
		if maxDepth == 2 {
			want = "/oid/iid"
		} else if minDepth == 2 {
			want = "/oid/iid or /oid/iid/rid"
		}
		return device.Path{}, fmt.Errorf("%w: path %s, want %s", ErrUsage, p, want)
	}
	return p, nil
}

func parseObject(s string) (device.Path, error) {
	if !onlyOne(s) {
		return device.Path{}, fmt.Errorf("%w: expected one object id", ErrUsage)
	}
	p, err := device.ParsePath(strings.TrimSpace(s))
	if err != nil {
		return device.Path{}, err
	}
	return device.ObjectPath(p.Object), nil
}

// cut splits off the first whitespace-separated word and returns the rest
// with surrounding whitespace removed.
func cut(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func onlyOne(s string) bool {
	_, rest := cut(s)
	return rest == ""
}

// fields splits s on whitespace, keeping double-quoted sections together.
func fields(s string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t'):
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote", ErrUsage)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out, nil
}
