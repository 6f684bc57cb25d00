// Package mcp implements the Model Context Protocol (MCP) server for the
// HPO phenotype tools.
//
// The server exposes eleven tools:
//   - get_genes_by_hpo, get_hpo_by_gene, get_diseases_by_gene,
//     get_genes_by_disease, get_diseases_by_hpo, get_hpo_by_disease:
//     relationship lookups over the annotation store
//   - get_hpo_name_by_id: term name resolution
//   - search_hpo_for_symptom: semantic search over the vector index
//   - english_phenotype_analysis_workflow, chinese_phenotype_analysis_workflow:
//     static analysis workflows for the calling model; the Chinese workflow
//     is also registered as chinese_phenotype_anaylysis_workflow
//   - get_server_status: health snapshot
//
// # Transports
//
// The server speaks MCP over stdio by default, or over streamable HTTP at
// /mcp when started with --transport http:
//
//	phenotype-mcp serve
//	phenotype-mcp serve --transport http --port 8000
//
// Logs always go to stderr since stdout carries the protocol.
//
// # Responses
//
// Every tool returns a JSON object as text content. A lookup miss is data,
// not an error:
//
//	Request:
//	{
//	  "name": "get_genes_by_hpo",
//	  "arguments": {"hpo_id": "HP:9999999"}
//	}
//
//	Response:
//	{
//	  "hpo_id": "HP:9999999",
//	  "hpo_name": "unknown",
//	  "found": false,
//	  "genes": []
//	}
//
// Symptom search reports an unavailable matcher the same way:
//
//	{
//	  "status": "unavailable",
//	  "reason": "credential missing",
//	  "detail": "VOYAGE_API_KEY is not set",
//	  "symptom": "seizures",
//	  "k": 5,
//	  "candidates": []
//	}
//
// Only a missing required argument yields a tool error result (isError).
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "phenotype": {
//	      "command": "/usr/local/bin/phenotype-mcp",
//	      "args": ["serve"],
//	      "env": {
//	        "VOYAGE_API_KEY": "your-api-key",
//	        "PHENOTYPE_STORE_PATH": "/data/hpo_annotations.db"
//	      }
//	    }
//	  }
//	}
package mcp
