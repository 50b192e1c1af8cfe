package main

import "github.com/goliatone/go-insurai/internal/cli"

func main() {
	cli.Execute()
}
