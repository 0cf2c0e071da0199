package main

import "finquest/cmd/fq/root"

func main() {
	root.Execute()
}
