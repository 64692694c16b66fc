package main

import "github.com/JakeFAU/pet-preview/cmd"

func main() {
	cmd.Execute()
}
