package mcp

import "github.com/mark3labs/mcp-go/mcp"

var healthToolDef = mcp.NewTool("drug_health",
	mcp.WithDescription("Check whether the drug recognition service is reachable."),
)

var scanToolDef = mcp.NewTool("drug_scan",
	mcp.WithDescription("Recognize a drug label from one or more photos. "+
		"Each photo goes through the quality check first. A retake request moves on to the next photo, "+
		"and a low-light request waits and re-shoots with the flash on. "+
		"Returns the drug information, the spoken narration, and every user notification."),
	mcp.WithArray("image_paths",
		mcp.Required(),
		mcp.Description("Image files to use as successive shots, in order. The last one is reused for flash retries."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("flash", mcp.Description("Start with the flash on.")),
	mcp.WithBoolean("fallback", mcp.Description("Return a flagged placeholder result when the recognition call fails.")),
	mcp.WithBoolean("save", mcp.Description("Save a successful result to history.")),
	mcp.WithBoolean("debug", mcp.Description("Include state transitions and the raw result.")),
)

var listToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List saved recognitions, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max items to return (default 20, max 50).")),
	mcp.WithNumber("offset", mcp.Description("Items to skip.")),
)

var fetchToolDef = mcp.NewTool("history_fetch",
	mcp.WithDescription("Fetch one saved recognition by id."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("History record id.")),
)

var clearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Delete every saved recognition."),
)

var exportToolDef = mcp.NewTool("history_export",
	mcp.WithDescription("Export saved recognitions to a JSONL file, newest first."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file. Defaults to ~/.medscan/exports/history-<timestamp>.jsonl.")),
)
