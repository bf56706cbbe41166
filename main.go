package main

import "github.com/betrace-hq/betrace-sub002/cmd"

func main() {
	cmd.Execute()
}
