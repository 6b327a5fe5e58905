package main

import "github.com/KaramelBytes/incomegap/cmd"

func main() {
	cmd.Execute()
}
