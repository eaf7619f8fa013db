// jamf-uptime ranks Jamf Pro managed computers by uptime.
//
// Usage:
//
//	jamf-uptime                  # quick scan when the cache is fresh
//	jamf-uptime --full-scan      # scan every computer and rebuild the cache
//	jamf-uptime --format json    # machine-readable output
//	jamf-uptime status           # config, cache and schedule state
package main

import "github.com/escape-velocity-ventures/jamf-uptime/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
