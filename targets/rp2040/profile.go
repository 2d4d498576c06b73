//go:build rp2040 || rp2350

package main

// profileName selects the emulated chip revision.
// Override at build time:
//
//	tinygo build -target=pico -ldflags="-X main.profileName=base" ./targets/rp2040
var profileName = "extended"

// version is reported in the dictionary; release builds stamp it with
// -ldflags="-X main.version=greendot-$(git describe)"
var version = "greendot-dev"
