// Command appium-pom resolves Appium configuration and runs data-driven
// page-object scenarios.
package main

import "github.com/devicelab-dev/appium-pom/pkg/cli"

func main() {
	cli.Execute()
}
