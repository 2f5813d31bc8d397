package main

import "github.com/tnprice/crawler/cmd"

func main() {
	cmd.Execute()
}
