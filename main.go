package main

import "github.com/sw33tLie/leaguebundle/cmd"

func main() {
	cmd.Execute()
}
