package main

import "panelsync/internal/commands"

func main() {
	commands.Execute()
}
