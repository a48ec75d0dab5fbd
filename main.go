package main

import "go-phishguard/cmd"

func main() {
	cmd.Execute()
}
