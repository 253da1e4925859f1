package main

import "github.com/Tiliavir/work-hours/cmd"

func main() {
	cmd.Execute()
}
