package main

import "libsmce-go/cmd/smce/cmd"

func main() {
	cmd.Execute()
}
