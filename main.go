package main

import "echochamber/cmd"

func main() {
	cmd.Execute()
}
