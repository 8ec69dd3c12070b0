package main

import "github.com/capecart/ms-go-checkout/cmd"

func main() {
	cmd.Execute()
}
