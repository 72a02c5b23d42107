package main

import "portfolio-gallery/cmd"

func main() {
	cmd.Execute()
}
