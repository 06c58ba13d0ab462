package mcpserver

// toolDefinitions returns the JSON Schema for every tool this server exposes.
func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "store_qa",
			Description: "Capture a question/answer pair under a topic, deduplicating the topic against semantically similar existing topics.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"question": {Type: "string", Description: "The question that was asked."},
					"answer":   {Type: "string", Description: "The answer that was given."},
					"topic":    {Type: "string", Description: "A short topic label; will be merged into an existing similar topic if one exists."},
				},
				Required: []string{"question", "answer", "topic"},
			},
		},
		{
			Name:        "query_qa",
			Description: "Search previously stored question/answer pairs within the topic best matching the given context.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"question": {Type: "string", Description: "The question to search for; if omitted, context alone is used as the query."},
					"context":  {Type: "string", Description: "A sentence describing the current situation, used to find the right topic."},
				},
				Required: []string{"context"},
			},
		},
		{
			Name:        "merge_knowledge",
			Description: "Cluster similar unmerged question/answer pairs within one or all topics and distill each cluster into a durable knowledge entry.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"topic":     {Type: "string", Description: "Restrict merging to this topic; if omitted, every topic is considered."},
					"threshold": {Type: "number", Description: "Cosine distance threshold for clustering (default 0.15)."},
				},
			},
		},
	}
}

const resourceURITemplate = "knowledge://{topic}/{query}"

func resourceTemplates() []ResourceTemplate {
	return []ResourceTemplate{
		{
			URITemplate: resourceURITemplate,
			Name:        "knowledge",
			Description: "Distilled knowledge entries for a topic matching a free-text query.",
			MimeType:    "application/json",
		},
	}
}
