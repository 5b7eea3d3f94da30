package version

import "github.com/fatih/color"

// Version information for the zigself-heapbench CLI.
// GitCommit, GitMessage and BuildDate can be overridden at build time via
// -ldflags -X. Version is built by function calls, and -X does not
// replace a variable with such an initializer.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = versionMajorColor.Sprint("0") + "." + versionMinorColor.Sprint("1") + "." + versionPatchColor.Sprint("0") + "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""

	// Algorithm names the collection strategy the heap package this
	// build links against implements. Unlike the fields above it is
	// not meant to be overridden via -ldflags: it describes the binary's
	// collector, not its provenance.
	Algorithm = "generational semi-space copying GC (eden/from/to, tenuring to old-space)"
)
