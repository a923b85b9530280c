package main

import "github.com/sockmux/sockmux/cmd/sockmuxd/cmd"

func main() {
	cmd.Execute()
}
