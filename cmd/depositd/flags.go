package main

import (
	"fmt"

	"github.com/arkade-os/depositd/internal/config"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const (
	urlFlagName      = "url"
	heightFlagName   = "height"
	amountFlagName   = "amount"
	hashFlagName     = "hash"
	lockedFlagName   = "locked"
	unlockedFlagName = "unlocked"
	fromFlagName     = "from"
	fileFlagName     = "file"
)

var defaultUrl = fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort)

var (
	urlFlag = &cli.StringFlag{
		Name:  urlFlagName,
		Usage: "the url where to reach depositd, defaults to DEPOSITD_URL if set",
		Value: defaultUrl,
	}
	heightFlag = func(required bool) *cli.UintFlag {
		return &cli.UintFlag{
			Name:     heightFlagName,
			Usage:    "block height",
			Required: required,
		}
	}
	amountFlag = &cli.Int64Flag{
		Name:     amountFlagName,
		Usage:    "total deposit amount at the end of the block",
		Required: true,
	}
	hashFlag = &cli.StringFlag{
		Name:  hashFlagName,
		Usage: "hash of the block",
	}
	lockedFlag = &cli.Int64Flag{
		Name:  lockedFlagName,
		Usage: "amount locked in new deposits by the block",
	}
	unlockedFlag = &cli.Int64Flag{
		Name:  unlockedFlagName,
		Usage: "amount released by deposits unlocked in the block",
	}
	fromFlag = &cli.UintFlag{
		Name:     fromFlagName,
		Usage:    "first height to remove",
		Required: true,
	}
	fileFlag = &cli.StringFlag{
		Name:     fileFlagName,
		Usage:    "path of the snapshot file",
		Required: true,
	}
)

// serverUrl gives precedence to the flag, then to the env var.
func serverUrl(ctx *cli.Context) string {
	if ctx.IsSet(urlFlagName) {
		return ctx.String(urlFlagName)
	}
	if url := viper.GetString(urlFlagName); url != "" {
		return url
	}
	return ctx.String(urlFlagName)
}
