package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventsclient"
)

func newInteractiveCommand() *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Open a prompt for adding and removing routing keys live",
		Long: `Connect and open a prompt. Keys added or removed at the prompt are bound or
unbound on the server straight away and survive reconnects. Events are printed
as they arrive.`,
		Aliases: []string{"shell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, keys)
		},
	}

	cmd.Flags().StringArrayVar(&keys, "key", nil, "Initial routing key pattern, optionally pattern@id (repeatable)")

	return cmd
}

func runInteractive(cmd *cobra.Command, keys []string) error {
	sub, err := newSubscriber(cmd, keys)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eventsd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("add"),
			readline.PcItem("remove"),
			readline.PcItem("keys"),
			readline.PcItem("state"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{sub: sub, out: rl.Stdout()}
	sub.OnEvent(func(e eventsclient.Event) {
		printEvent(rl.Stdout(), e, false)
	})
	watchConnection(sub, rl.Stderr())

	sub.Start()
	defer stopSubscriber(sub)

	sh.printHelp()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			// EOF
			return nil
		}
		if sh.exec(line) {
			return nil
		}
	}
}

// shell runs prompt commands against a subscription client.
type shell struct {
	sub *eventsclient.Client
	out io.Writer
}

// exec runs one prompt line. It reports whether the shell should exit.
func (s *shell) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "add", "a":
		s.cmdAdd(args)

	case "remove", "rm", "r":
		s.cmdRemove(args)

	case "keys", "k":
		keys := s.sub.Keys()
		if len(keys) == 0 {
			fmt.Fprintln(s.out, "no keys")
			break
		}
		for i, k := range keys {
			fmt.Fprintf(s.out, "%d. %s\n", i+1, k)
		}

	case "state", "s":
		fmt.Fprintf(s.out, "%s %s\n", s.sub.State(), s.sub.URL())

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

// interestArgs reads "pattern [id]" or "pattern@id".
func interestArgs(args []string) (eventsclient.Interest, error) {
	switch len(args) {
	case 1:
		return parseKeyArg(args[0])
	case 2:
		if args[0] == "" {
			break
		}
		return eventsclient.Interest{RoutingKey: args[0], ID: args[1]}, nil
	}
	return eventsclient.Interest{}, fmt.Errorf("usage: <pattern> [id]")
}

func (s *shell) cmdAdd(args []string) {
	in, err := interestArgs(args)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if s.sub.AddKey(in) {
		fmt.Fprintf(s.out, "added %s\n", in)
	} else {
		fmt.Fprintf(s.out, "could not add %s\n", in)
	}
}

func (s *shell) cmdRemove(args []string) {
	in, err := interestArgs(args)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if s.sub.RemoveKey(in) {
		fmt.Fprintf(s.out, "removed %s\n", in)
	} else {
		fmt.Fprintf(s.out, "%s is not registered\n", in)
	}
}

func (s *shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  add <pattern> [id]      bind a routing key (also pattern@id)
  remove <pattern> [id]   unbind; without id matches any id
  keys                    list registered keys
  state                   show connection state
  help                    show this help
  quit                    unbind and exit
`)
}
