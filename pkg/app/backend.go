package app

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/daemon"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
)

// Backend is where the bar gets its state and sends its clicks: either an
// in-process widget or a running daemon.
type Backend interface {
	State(ctx context.Context) (widget.RenderedState, error)
	Click(ctx context.Context, b actions.Button) (actions.Action, error)
	Refresh(ctx context.Context) error
}

// LocalBackend drives a widget in this process.
type LocalBackend struct {
	Widget *widget.Widget
}

func (b LocalBackend) State(context.Context) (widget.RenderedState, error) {
	return b.Widget.Current(), nil
}

func (b LocalBackend) Click(ctx context.Context, button actions.Button) (actions.Action, error) {
	return b.Widget.OnClick(ctx, button)
}

func (b LocalBackend) Refresh(ctx context.Context) error {
	_, err := b.Widget.Poll(ctx)
	if errors.Is(err, collectors.ErrBusy) {
		return nil
	}
	return err
}

// DaemonBackend talks to a running daemon over its socket.
type DaemonBackend struct {
	Client *daemon.IPCClient
}

func (b DaemonBackend) State(context.Context) (widget.RenderedState, error) {
	var st widget.RenderedState
	err := b.Client.Call(daemon.CmdStatus, &st)
	return st, err
}

func (b DaemonBackend) Click(_ context.Context, button actions.Button) (actions.Action, error) {
	var resp struct {
		Action string `json:"action"`
	}
	if err := b.Client.Call(daemon.CmdClick+" "+button.String(), &resp); err != nil {
		return "", err
	}
	a, ok := actions.Parse(resp.Action)
	if !ok {
		return "", fmt.Errorf("daemon returned unknown action %q", resp.Action)
	}
	return a, nil
}

func (b DaemonBackend) Refresh(context.Context) error {
	return b.Client.Call(daemon.CmdRefresh, nil)
}
