package mcp

import "github.com/mark3labs/mcp-go/mcp"

var detectToolDef = mcp.NewTool("edf_detect",
	mcp.WithDescription("Classify an EDF recording by its annotation-storage variant without converting it."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .edf recording.")),
)

var convertToolDef = mcp.NewTool("edf_convert",
	mcp.WithDescription("Convert one EDF recording's annotations into the three scoring-engine text files, normalizing the recording first when its header is non-compliant."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .edf recording.")),
	mcp.WithString("output_dir", mcp.Description("Directory for the text outputs. Defaults to the recording's directory.")),
)

var batchToolDef = mcp.NewTool("edf_batch",
	mcp.WithDescription("Convert every EDF recording under a directory, continuing past per-file failures. The run is recorded in history."),
	mcp.WithString("root", mcp.Required(), mcp.Description("Directory walked recursively for .edf files.")),
	mcp.WithString("output_dir", mcp.Description("Directory for the text outputs. Defaults to each recording's directory.")),
)

var inspectToolDef = mcp.NewTool("edf_inspect",
	mcp.WithDescription("Summarize an EDF recording's header: start time, duration, channels, annotation count."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .edf recording.")),
)

var fixRangesToolDef = mcp.NewTool("edf_fix_ranges",
	mcp.WithDescription("Rewrite a recording whose biosignal channels were recorded with too-narrow physical ranges, widening each to its observed extremes plus a margin."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .edf recording.")),
	mcp.WithString("output_path", mcp.Description("Path for the repaired copy. Defaults to the input stem with a _ranged suffix.")),
)

var historyToolDef = mcp.NewTool("edf_history",
	mcp.WithDescription("List recorded batch runs, or the per-file outcomes of one run."),
	mcp.WithString("run_id", mcp.Description("When set, include that run's per-file outcomes.")),
	mcp.WithNumber("limit", mcp.Description("Maximum runs to list. Defaults to 20.")),
)
