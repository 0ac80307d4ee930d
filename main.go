package main

import "workflow-builder/api/cmd"

func main() {
	cmd.Execute()
}
