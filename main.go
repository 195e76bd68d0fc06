package main

import "github.com/transifex/jsonapi-server/cmd/apiserver"

func main() {
	apiserver.Main()
}
