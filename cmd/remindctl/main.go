package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Shtya/fitness-reminders/internal/cli"
)

var CLI struct {
	Next cli.NextCmd `cmd:"" help:"Show upcoming occurrences of the reminders in a seed file."`
	ICS  cli.ICSCmd  `cmd:"" name:"ics" help:"Render a seed file as an iCalendar feed."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("remindctl"),
		kong.Description("Preview fitness reminder schedules"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	if err := ctx.Run(&cli.Context{Out: os.Stdout, Now: time.Now}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
