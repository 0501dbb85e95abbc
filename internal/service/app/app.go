package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"e2e_station/internal/model"
	"e2e_station/internal/utils/log"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		client *Client
		peer   model.ID
	}
)

func NewApp(client *Client) *App {
	return &App{
		app:    tview.NewApplication(),
		client: client,
	}
}

// Run connects and blocks in the UI until the user quits.
func (c *App) Run(ctx context.Context) error {
	if err := c.client.Connect(ctx); err != nil {
		return err
	}
	defer c.client.Close()

	go func() {
		err := c.client.Listen(c.handleEvent)
		log.Debug("station connection closed", zap.Error(err))
		c.print("[red]station:[-] connection closed")
	}()

	return c.renderUI(ctx)
}

func (c *App) Stop() {
	c.app.Stop()
}

// blocking function
func (c *App) renderUI(ctx context.Context) error {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", c.client.ID()))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" /to <id>, /users, /search <kw>, /quit ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(c.input.GetText())
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(line string) {
			if err := c.handleInput(ctx, line); err != nil {
				c.print(fmt.Sprintf("[red]error:[-] %s", tview.Escape(err.Error())))
			}
		}(text)
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	return c.app.SetRoot(layout, true).SetFocus(c.input).Run()
}

func (c *App) handleInput(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit":
		c.Stop()
		return nil
	case "/to":
		if arg == "" {
			return fmt.Errorf("usage: /to <id>")
		}
		if _, err := c.client.peerMeta(ctx, model.ID(arg)); err != nil {
			return err
		}
		c.peer = model.ID(arg)
		c.app.QueueUpdateDraw(func() {
			c.chatbox.SetTitle(fmt.Sprintf(" %s -> %s ", c.client.ID(), c.peer))
		})
		return nil
	case "/users":
		return c.client.Command(model.NewCommand("users"))
	case "/search":
		content := model.NewCommand("search")
		content.Keywords = arg
		return c.client.Command(content)
	}

	if c.peer == "" {
		return fmt.Errorf("choose a recipient first: /to <id>")
	}
	if err := c.client.SendText(ctx, c.peer, line); err != nil {
		return err
	}
	c.print(fmt.Sprintf("[yellow]You:[-] %s", tview.Escape(line)))
	return nil
}

func (c *App) handleEvent(ev Event) {
	switch ev.Kind {
	case EventMessage:
		c.print(fmt.Sprintf("[green]%s:[-] %s", ev.From.Name(), tview.Escape(ev.Text)))
	case EventLogin:
		c.print("[blue]station:[-] logged in as " + c.client.ID().String())
	default:
		c.print("[blue]station:[-] " + tview.Escape(ev.Text))
	}
}

func (c *App) print(line string) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprintln(c.chatbox, line)
		c.chatbox.ScrollToEnd()
	})
}
