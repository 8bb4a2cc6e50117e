package main

import "dorsal/cmd"

func main() {
	cmd.Execute()
}
