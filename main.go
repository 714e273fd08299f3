package main

import "github.com/giantswarm/fedctl/cmd/fedctl"

// version can be set during build with -ldflags
var version = "dev"

func main() {
	fedctl.SetVersion(version)
	fedctl.Execute()
}
