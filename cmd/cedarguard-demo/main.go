// Command cedarguard-demo wires the cedarguard authorization runtime
// together and exposes it as a CLI: a one-shot "check" against a single
// principal/action/resource triple, or a long-lived "serve" process with
// hot policy reload and a metrics endpoint.
package main

import (
	"os"

	"cedarguard/cmd/cedarguard-demo/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
