package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/Meander-Cloud/go-holdem/config"
	m "github.com/Meander-Cloud/go-holdem/message"
	"github.com/Meander-Cloud/go-holdem/node"
)

const usage = "start | bet N | raise N | call | check | fold | allin | status | drop | quit"

type command struct {
	verb   string
	action m.Action
	amount int64
}

// parseCommand reads one console line. A zero action means the verb is
// handled by the console itself.
func parseCommand(line string) (*command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &command{
		verb: fields[0],
	}

	switch cmd.verb {
	case "start":
		cmd.action = m.ActionStart
	case "call":
		cmd.action = m.ActionCall
	case "check":
		cmd.action = m.ActionCheck
	case "fold":
		cmd.action = m.ActionFold
	case "allin":
		cmd.action = m.ActionAllIn
	case "bet", "raise":
		cmd.action = m.ActionBet
		if cmd.verb == "raise" {
			cmd.action = m.ActionRaise
		}

		if len(fields) != 2 {
			return nil, fmt.Errorf("%s needs an amount", cmd.verb)
		}
		amount, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("invalid amount %q", fields[1])
		}
		cmd.amount = amount
	case "status", "drop", "quit", "help":
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.verb)
	}

	return cmd, nil
}

func printStatus(n *node.Node) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()

	status, err := n.Status(ctx)
	if err != nil {
		pterm.Error.Printfln("status unavailable: %s", err.Error())
		return
	}

	pterm.DefaultBox.
		WithTitle(fmt.Sprintf("%s | %s", status.SelfID, status.Role)).
		WithTitleTopLeft().
		Println(
			fmt.Sprintf(
				"dealer=%s epoch=%d\nnextExpected=%d pending=%d nacks=%d seq=%d history=%d\n%s",
				status.LeaderID,
				status.Epoch,
				status.NextExpected,
				status.Pending,
				status.NackCount,
				status.Seq,
				status.History,
				status.Summary,
			),
		)

	err = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(status.Rows)).Render()
	if err != nil {
		log.Printf("main: table render failed, err=%s", err.Error())
	}

	if status.MyTurn {
		pterm.Info.Printfln("your turn, %d to call", status.ToCall)
	}
}

func run(file string) {
	c, err := config.ReadConfig(file)
	if err != nil {
		log.Printf("main: failed to read config %s, err=%s", file, err.Error())
		return
	}

	n, err := node.NewNode(
		c,
		func(event string) {
			pterm.Info.Println(event)
		},
	)
	if err != nil {
		log.Printf("main: failed to create node, err=%s", err.Error())
		return
	}
	defer n.Shutdown()

	n.Start()
	pterm.Info.Printfln("%s listening on %s, commands: %s", c.Host, c.SelfAddress, usage)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigch:
			log.Printf("main: received signal %s, exiting", sig.String())
			return

		case line, ok := <-lines:
			if !ok {
				log.Printf("main: stdin closed, exiting")
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			cmd, err := parseCommand(line)
			if err != nil {
				pterm.Warning.Printfln("%s, try: %s", err.Error(), usage)
				continue
			}

			switch cmd.verb {
			case "quit":
				return
			case "help":
				pterm.Info.Println(usage)
			case "status":
				printStatus(n)
			case "drop":
				n.DropNext()
			default:
				n.Request(cmd.action, cmd.amount)
			}
		}
	}
}

func main() {
	// enable microsecond and file line logging
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if len(os.Args) <= 1 {
		log.Printf("main: usage: %s <config.yaml>", os.Args[0])
		os.Exit(1)
	}

	run(os.Args[1])
}
