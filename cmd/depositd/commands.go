package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	infoCmd = &cli.Command{
		Name:   "info",
		Usage:  "Show the state of the deposit index",
		Action: infoAction,
		Flags:  []cli.Flag{urlFlag},
	}
	pushCmd = &cli.Command{
		Name:   "push",
		Usage:  "Append a block with the total deposit amount at its end",
		Action: pushAction,
		Flags:  []cli.Flag{urlFlag, heightFlag(true), amountFlag},
	}
	applyCmd = &cli.Command{
		Name:   "apply",
		Usage:  "Append a block given the deposits it locks and unlocks",
		Action: applyAction,
		Flags:  []cli.Flag{urlFlag, heightFlag(true), hashFlag, lockedFlag, unlockedFlag},
	}
	popCmd = &cli.Command{
		Name:   "pop",
		Usage:  "Disconnect the tip block",
		Action: popAction,
		Flags:  []cli.Flag{urlFlag},
	}
	rollbackCmd = &cli.Command{
		Name:   "rollback",
		Usage:  "Remove every block at or above the given height",
		Action: rollbackAction,
		Flags:  []cli.Flag{urlFlag, fromFlag},
	}
	amountCmd = &cli.Command{
		Name:   "amount",
		Usage:  "Get the deposit amount at the tip or at the given height",
		Action: amountAction,
		Flags:  []cli.Flag{urlFlag, heightFlag(false)},
	}
	checkpointCmd = &cli.Command{
		Name:   "checkpoint",
		Usage:  "Persist the deposit index now",
		Action: checkpointAction,
		Flags:  []cli.Flag{urlFlag},
	}
	snapshotCmd = &cli.Command{
		Name:  "snapshot",
		Usage: "Export or import a binary snapshot of the deposit index",
		Subcommands: cli.Commands{
			{
				Name:   "export",
				Usage:  "Write the snapshot to file",
				Action: exportAction,
				Flags:  []cli.Flag{urlFlag, fileFlag},
			},
			{
				Name:   "import",
				Usage:  "Replace the deposit index with the snapshot read from file",
				Action: importAction,
				Flags:  []cli.Flag{urlFlag, fileFlag},
			},
		},
	}
)

func infoAction(ctx *cli.Context) error {
	info, err := get[indexInfo](fmt.Sprintf("%s/v1/info", serverUrl(ctx)))
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func pushAction(ctx *cli.Context) error {
	body := map[string]any{
		"height": ctx.Uint(heightFlagName),
		"amount": ctx.Int64(amountFlagName),
	}
	info, err := post[indexInfo](fmt.Sprintf("%s/v1/blocks", serverUrl(ctx)), body)
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func applyAction(ctx *cli.Context) error {
	body := map[string]any{
		"height":   ctx.Uint(heightFlagName),
		"hash":     ctx.String(hashFlagName),
		"locked":   ctx.Int64(lockedFlagName),
		"unlocked": ctx.Int64(unlockedFlagName),
	}
	info, err := post[indexInfo](fmt.Sprintf("%s/v1/blocks/deltas", serverUrl(ctx)), body)
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func popAction(ctx *cli.Context) error {
	info, err := sendJSON[indexInfo](
		http.MethodDelete, fmt.Sprintf("%s/v1/blocks/tip", serverUrl(ctx)), nil,
	)
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func rollbackAction(ctx *cli.Context) error {
	body := map[string]any{"from": ctx.Uint(fromFlagName)}
	resp, err := post[struct {
		Removed uint32    `json:"removed"`
		Info    indexInfo `json:"info"`
	}](fmt.Sprintf("%s/v1/rollback", serverUrl(ctx)), body)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d blocks\n%s\n", resp.Removed, resp.Info)
	return nil
}

func amountAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/deposits/full", serverUrl(ctx))
	if ctx.IsSet(heightFlagName) {
		url = fmt.Sprintf(
			"%s/v1/deposits/height/%d", serverUrl(ctx), ctx.Uint(heightFlagName),
		)
	}
	resp, err := get[struct {
		Amount int64 `json:"amount"`
	}](url)
	if err != nil {
		return err
	}
	fmt.Println(resp.Amount)
	return nil
}

func checkpointAction(ctx *cli.Context) error {
	info, err := post[indexInfo](fmt.Sprintf("%s/v1/checkpoint", serverUrl(ctx)), nil)
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func exportAction(ctx *cli.Context) error {
	data, err := do(http.MethodGet, fmt.Sprintf("%s/v1/snapshot", serverUrl(ctx)), nil, "")
	if err != nil {
		return err
	}
	path := ctx.String(fileFlagName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	fmt.Printf("snapshot of %d bytes written to %s\n", len(data), path)
	return nil
}

func importAction(ctx *cli.Context) error {
	data, err := os.ReadFile(ctx.String(fileFlagName))
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if _, err := do(
		http.MethodPut, fmt.Sprintf("%s/v1/snapshot", serverUrl(ctx)),
		bytes.NewReader(data), snapshotContentType,
	); err != nil {
		return err
	}
	return infoAction(ctx)
}
