package errors

// errorTemplate is a registered error definition.
type errorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps stable error codes to their templates. Codes are grouped
// by subsystem: E1xx config, E2xx sources, E3xx network, E4xx CLI.
var registry = map[string]errorTemplate{
	"E101": {
		Category:   CategoryConfig,
		Message:    "configuration file not found",
		Suggestion: "create pixelcast.json or pass an explicit path with --config",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "configuration file is not valid JSON",
		Suggestion: "check pixelcast.json for syntax errors",
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "invalid pipeline configuration",
		Suggestion: "every pipeline needs a unique name, a listen address and a positive resolution",
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "invalid controller configuration",
		Suggestion: "threshold bounds must satisfy 0 <= min <= max and steps must be positive",
	},
	"E105": {
		Category:   CategoryConfig,
		Message:    "invalid archive configuration",
		Suggestion: "archiving needs a bucket name; leave the block out to disable it",
	},

	"E201": {
		Category:   CategorySource,
		Message:    "unknown source kind",
		Suggestion: "valid kinds are bios, cpu, prometheus and pattern",
	},
	"E202": {
		Category:   CategorySource,
		Message:    "source initialization failed",
		Suggestion: "check the source options for this pipeline",
	},

	"E301": {
		Category:   CategoryNetwork,
		Message:    "listen address unavailable",
		Suggestion: "the address may be in use by another process or pipeline",
	},

	"E401": {
		Category:   CategoryCLI,
		Message:    "invalid command arguments",
		Suggestion: "run with --help for usage",
	},
}
