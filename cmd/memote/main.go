package main

import "github.com/JakeFAU/memote-webservice/cmd"

func main() {
	cmd.Execute()
}
