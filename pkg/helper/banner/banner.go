package banner

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Logo is the ASCII art shown on server startup.
const Logo = `
    _____________________________________
   |                                     |
   |   miniblob                         |
   |   delta-compressed blob history    |
   |_____________________________________|
`

// SmallLogo is a compact version used for quick CLI output.
const SmallLogo = `
   _________________
  |    miniblob     |
  |_________________|
`

// Print displays the full banner with version info.
func Print() {
	color.New(color.FgCyan).Fprint(os.Stdout, Logo)
	fmt.Printf("  Version: %s | Commit: %s | Built: %s\n", Version, GitCommit, BuildTime)
	fmt.Printf("  Runtime: Go %s %s/%s\n\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// PrintSmall displays the compact banner.
func PrintSmall() {
	fmt.Print(SmallLogo)
	fmt.Printf("  v%s\n\n", Version)
}

// PrintVersion displays version information only.
func PrintVersion() {
	fmt.Printf("miniblob v%s\n", Version)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Built: %s\n", BuildTime)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
