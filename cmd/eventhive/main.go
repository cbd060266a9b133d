package main

import "github.com/Togather-Foundation/eventhive/cmd/eventhive/cmd"

func main() {
	cmd.Execute()
}
