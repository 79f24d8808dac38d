//go:build windows

package main

import "os"

// terminationSignals lists the signals that should trigger a graceful shutdown.
var terminationSignals = []os.Signal{os.Interrupt}
