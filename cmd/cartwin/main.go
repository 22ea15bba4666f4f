package main

import (
	// Sets GOMAXPROCS to the container CPU quota.
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/cartwin/cmd/cartwin/app"
)

func main() {
	app.NewApp().Run()
}
