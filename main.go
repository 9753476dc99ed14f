package main

import "github.com/Shanky048/WisePal/cmd/wisepal/commands"

func main() {
	commands.Execute()
}
