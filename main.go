package main

import "github.com/fleetsim/fleetsim/cmd"

func main() {
	cmd.Execute()
}
