package main

import "github.com/maxvaer/dirsift/cmd"

func main() {
	cmd.Execute()
}
