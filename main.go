package main

import "github.com/tanq16/mrpack-downloader/cmd"

func main() {
	cmd.Execute()
}
