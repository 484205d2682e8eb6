package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/peterh/liner"
)

// Run starts the read-eval-print loop. Lines starting with "/" are
// commands; everything else is sent as a turn on the current thread.
func (a *App) Run(ctx context.Context) error {
	if err := a.ensureThread(); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("Thread %s. Type /help for commands.\n", a.current)

	for {
		input, err := line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := a.command(ctx, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		a.sendTurn(ctx, input)
	}
}

func (a *App) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help":
		fmt.Print(helpText)
	case "/new":
		id, err := a.threads.CreateThread()
		if err != nil {
			return false, err
		}
		a.current = id
		fmt.Printf("Switched to new thread %s.\n", id)
	case "/threads":
		for _, info := range a.threads.ListThreads() {
			marker := " "
			if info.ID == a.current {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, info.ID, info.Title)
		}
	case "/switch":
		if arg == "" {
			return false, fmt.Errorf("usage: /switch <thread-id>")
		}
		if err := a.switchThread(arg); err != nil {
			return false, err
		}
		fmt.Printf("Switched to thread %s.\n", arg)
	case "/delete":
		if arg == "" {
			return false, fmt.Errorf("usage: /delete <thread-id>")
		}
		if err := a.threads.DeleteThread(arg); err != nil {
			return false, err
		}
		if a.current == arg {
			a.current = ""
			if err := a.ensureThread(); err != nil {
				return false, err
			}
		}
		fmt.Printf("Deleted thread %s.\n", arg)
	case "/history":
		_, transcript, err := a.threads.ThreadMessages(a.current)
		if err != nil {
			return false, err
		}
		if transcript == "" {
			fmt.Println("No messages yet.")
		} else {
			fmt.Println(transcript)
		}
	case "/models":
		infos := a.registry.Infos()
		sort.Slice(infos, func(i, j int) bool {
			return infos[i].ID < infos[j].ID
		})
		for _, info := range infos {
			fmt.Printf("%-24s %-12s %s\n", info.ID, info.Provider, info.ContextWindow)
		}
	case "/context":
		if arg == "" {
			return false, fmt.Errorf("usage: /context <text>")
		}
		if _, err := a.chat.AddContext(ctx, []*schema.Document{{Content: arg}}); err != nil {
			return false, err
		}
		fmt.Println("Context added.")
	case "/quit", "/exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s", name)
	}

	return false, nil
}

// sendTurn streams one turn to stdout. Ctrl-C while streaming abandons the
// turn; the fragments already printed are still committed to the thread's
// checkpoint.
func (a *App) sendTurn(ctx context.Context, input string) {
	wasFirst, err := a.threads.IsFirstTurn(a.current)
	if err != nil {
		wasFirst = false
	}

	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stream, err := a.threads.StreamTurn(turnCtx, a.current, input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stream.Close()

	var failed bool
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("\nError: %v\n", err)
			failed = true
			break
		}
		fmt.Print(fragment)
	}
	if !failed {
		fmt.Println()
	}

	if wasFirst && !failed {
		if _, err := a.threads.GenerateTitle(ctx, a.current); err != nil {
			fmt.Printf("Failed to generate thread title: %v\n", err)
		}
	}
}

const helpText = `Commands:
  /new                 start a new thread
  /threads             list threads
  /switch <thread-id>  switch to a thread
  /delete <thread-id>  delete a thread
  /history             show the current thread's transcript
  /models              list available models
  /context <text>      add a context document for retrieval
  /quit                exit
`
