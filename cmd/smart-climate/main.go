// smart-climate learns per-room AC temperature offsets from sensor history
// and serves them over MQTT, HTTP and WebSocket.
package main

import (
	"os"

	"github.com/VectorBarks/smart-climate-sub002/cmd/smart-climate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
