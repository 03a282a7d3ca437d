// Command gen-config-schema regenerates the embedded configuration schema
// from the Go types. Run it through "go generate ./config".
package main

import (
	"log"
	"os"

	"github.com/gitplane/gitplane/internal/config"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s path/to/schema.json", os.Args[0])
	}

	bs, err := config.ReflectSchema()
	if err != nil {
		log.Fatalf("failed to reflect schema: %v", err)
	}

	if err := os.WriteFile(os.Args[1], bs, 0644); err != nil {
		log.Fatal(err)
	}
}
