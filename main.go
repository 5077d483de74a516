package main

import "github.com/edgeflare/shellypg/cmd/shellypg"

func main() {
	shellypg.Main()
}
