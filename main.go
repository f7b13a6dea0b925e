/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	releaseVersion = "0.1.0"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logDate})

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
