package main

import "fxq/cmd"

func main() {
	cmd.Execute()
}
