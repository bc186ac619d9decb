// Command ssr-demo is a small blog served and prerendered with this module.
//
//	ssr-demo serve
//	ssr-demo prerender --output=dist
package main

import (
	"github.com/vango-dev/ssr/pkg/cli"
)

func main() {
	cli.Execute(cli.App{Name: "ssr-demo", Files: pages})
}
