// Command deoldify colorizes black and white photographs.
//
// Usage:
//
//	deoldify colorize old.jpg              # writes old-color.jpg
//	deoldify --artistic batch ./scans      # every *.jpg in ./scans
//	deoldify fetch s3://bucket/deoldify    # downloads the weight file
//	deoldify check                         # lists available weight files
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
