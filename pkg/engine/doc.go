// Package engine implements the core orchestration logic for askdoc.
// The Engine struct implements transport.DocumentService, bridging the
// HTTP and MCP front ends to the document store and the generation model.
// Ask retrieves the most relevant chunks of the active document and hands
// them to the generator. Errors leave the engine as *api.APIError values
// so every front end reports them the same way.
package engine
