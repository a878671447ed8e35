package main

import "buildwrap/internal/cli"

func main() {
	cli.Execute()
}
