package main

import "github.com/jywlabs/prdforge/cmd"

func main() {
	cmd.Execute()
}
