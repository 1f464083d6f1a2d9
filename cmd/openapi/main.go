// openapi exports and validates the REST API specification without
// starting the server.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"

	"mcp-project-memory/internal/docs"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: openapi <command>")
		fmt.Println("Commands:")
		fmt.Println("  dump [file] - Write the OpenAPI specification as JSON (stdout by default)")
		fmt.Println("  validate    - Validate the OpenAPI specification")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "dump":
		dumpSpec()
	case "validate":
		validateSpec()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func dumpSpec() {
	data, err := json.MarshalIndent(docs.OpenAPIDocument(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal spec: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if len(os.Args) > 2 {
		if err := os.WriteFile(os.Args[2], data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", os.Args[2], err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", os.Args[2])
		return
	}
	_, _ = os.Stdout.Write(data)
}

func validateSpec() {
	doc := docs.OpenAPIDocument()
	if err := doc.Validate(openapi3.NewLoader().Context); err != nil {
		fmt.Fprintf(os.Stderr, "specification is invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("specification is valid: %d paths, %d schemas\n",
		doc.Paths.Len(), len(doc.Components.Schemas))
}
