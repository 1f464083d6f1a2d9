// Package docs carries the API reference: a programmatically built OpenAPI
// document for the REST surface and a rendered usage guide.
package docs

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// APIVersion is reported in the OpenAPI document and /health.
const APIVersion = "1.0.0"

// OpenAPIDocument describes the REST CRUD surface. The MCP endpoint is
// JSON-RPC and documented in the guide instead.
func OpenAPIDocument() *openapi3.T {
	memorySchema := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema().WithFormat("uuid")).
		WithProperty("project", openapi3.NewStringSchema()).
		WithProperty("content", openapi3.NewStringSchema()).
		WithProperty("tags", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("created_at", openapi3.NewStringSchema().WithFormat("date-time")).
		WithProperty("updated_at", openapi3.NewStringSchema().WithFormat("date-time"))

	searchResultSchema := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema().WithFormat("uuid")).
		WithProperty("project", openapi3.NewStringSchema()).
		WithProperty("content", openapi3.NewStringSchema()).
		WithProperty("tags", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("score", openapi3.NewFloat64Schema())

	searchResponseSchema := openapi3.NewObjectSchema().
		WithProperty("query", openapi3.NewStringSchema()).
		WithPropertyRef("results", openapi3.NewSchemaRef("",
			openapi3.NewArraySchema().WithItems(searchResultSchema)))

	storeRequestSchema := openapi3.NewObjectSchema().
		WithProperty("content", openapi3.NewStringSchema()).
		WithProperty("tags", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("project", openapi3.NewStringSchema())
	storeRequestSchema.Required = []string{"content"}

	updateRequestSchema := openapi3.NewObjectSchema().
		WithProperty("content", openapi3.NewStringSchema()).
		WithProperty("tags", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("project", openapi3.NewStringSchema())

	deleteResponseSchema := openapi3.NewObjectSchema().
		WithProperty("deleted", openapi3.NewBoolSchema())

	errorSchema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema())

	memoryRef := openapi3.NewSchemaRef("", memorySchema)
	errorRef := openapi3.NewSchemaRef("", errorSchema)

	jsonResponse := func(description string, ref *openapi3.SchemaRef) *openapi3.Responses {
		responses := openapi3.NewResponses()
		responses.Set("200", &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(description).
				WithJSONSchemaRef(ref),
		})
		responses.Set("400", &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription("Invalid request").
				WithJSONSchemaRef(errorRef),
		})
		return responses
	}

	withNotFound := func(responses *openapi3.Responses) *openapi3.Responses {
		responses.Set("404", &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription("Memory not found").
				WithJSONSchemaRef(errorRef),
		})
		return responses
	}

	projectParam := &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter("project").
			WithDescription("Project codename; defaults to project_memory").
			WithSchema(openapi3.NewStringSchema()),
	}
	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").
			WithRequired(true).
			WithSchema(openapi3.NewStringSchema().WithFormat("uuid")),
	}

	paths := openapi3.NewPaths()
	paths.Set("/api/memories", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listMemories",
			Summary:     "List all memories of a project",
			Parameters:  openapi3.Parameters{projectParam},
			Responses: jsonResponse("Memories, oldest first", openapi3.NewSchemaRef("",
				openapi3.NewArraySchema().WithItems(memorySchema))),
		},
		Post: &openapi3.Operation{
			OperationID: "createMemory",
			Summary:     "Store a new memory",
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(true).
					WithJSONSchemaRef(openapi3.NewSchemaRef("", storeRequestSchema)),
			},
			Responses: jsonResponse("The stored memory", memoryRef),
		},
	})
	paths.Set("/api/memories/search", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "searchMemories",
			Summary:     "Semantic search within a project",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("query").
						WithRequired(true).
						WithSchema(openapi3.NewStringSchema()),
				},
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("n_results").
						WithSchema(openapi3.NewIntegerSchema().WithDefault(5)),
				},
				projectParam,
			},
			Responses: jsonResponse("Ranked results",
				openapi3.NewSchemaRef("", searchResponseSchema)),
		},
	})
	paths.Set("/api/memories/{id}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getMemory",
			Summary:     "Fetch one memory by id",
			Parameters:  openapi3.Parameters{idParam, projectParam},
			Responses:   withNotFound(jsonResponse("The memory", memoryRef)),
		},
		Put: &openapi3.Operation{
			OperationID: "updateMemory",
			Summary:     "Update content and/or tags of a memory",
			Parameters:  openapi3.Parameters{idParam, projectParam},
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(true).
					WithJSONSchemaRef(openapi3.NewSchemaRef("", updateRequestSchema)),
			},
			Responses: withNotFound(jsonResponse("The updated memory", memoryRef)),
		},
		Delete: &openapi3.Operation{
			OperationID: "deleteMemory",
			Summary:     "Delete a memory",
			Parameters:  openapi3.Parameters{idParam, projectParam},
			Responses: withNotFound(jsonResponse("Deletion confirmation",
				openapi3.NewSchemaRef("", deleteResponseSchema))),
		},
	})
	paths.Set("/api/projects", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listProjects",
			Summary:     "List project codenames with memory counts",
			Responses: jsonResponse("Projects", openapi3.NewSchemaRef("",
				openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().
					WithProperty("project", openapi3.NewStringSchema()).
					WithProperty("count", openapi3.NewIntegerSchema())))),
		},
	})
	paths.Set("/health", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "health",
			Summary:     "Service health including dependency checks",
			Responses: jsonResponse("Health report", openapi3.NewSchemaRef("",
				openapi3.NewObjectSchema().
					WithProperty("status", openapi3.NewStringSchema()).
					WithProperty("version", openapi3.NewStringSchema()))),
		},
	})

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "MCP Project Memory API",
			Description: "REST surface of the project memory server. The MCP JSON-RPC endpoint lives at POST /mcp/{codename}.",
			Version:     APIVersion,
		},
		Paths: paths,
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Memory":         openapi3.NewSchemaRef("", memorySchema),
				"SearchResult":   openapi3.NewSchemaRef("", searchResultSchema),
				"SearchResponse": openapi3.NewSchemaRef("", searchResponseSchema),
				"StoreRequest":   openapi3.NewSchemaRef("", storeRequestSchema),
				"UpdateRequest":  openapi3.NewSchemaRef("", updateRequestSchema),
				"DeleteResponse": openapi3.NewSchemaRef("", deleteResponseSchema),
				"Error":          openapi3.NewSchemaRef("", errorSchema),
			},
		},
	}
}
