// Package cli provides the command line of an app built on this module.
//
// Apps declare their page files in Go and hand them to Execute:
//
//	func main() {
//		cli.Execute(cli.App{Name: "blog", Files: pages})
//	}
//
// The resulting binary has these commands:
//
//	prerender   Render pages to <build.output>/client, or to S3
//	serve       Render pages on each request
//	version     Print version information
package cli
