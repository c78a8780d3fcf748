package main

import "alumnisync/cmd"

func main() {
	cmd.Execute()
}
