package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	List       *string
	Count      *string
	Stat       *string
	Export     *string
	Invalidate *string

	// Request parameters
	Query *string // admin REST query string: filter[name]=x&page[number]=2

	// Options
	Config *string
	Output *string
	Format *string
	Sheet  *string
	Upload *bool

	// Config Creation
	CreateConfig *string

	// Misc
	Version *bool
	Help    *bool
}

// ParseFlags defines and parses command-line flags on fs
func ParseFlags(fs *flag.FlagSet, args []string) (*Flags, error) {
	f := &Flags{}

	// Commands
	f.List = fs.String("list", "", "List records of a collection (collection name)")
	f.Count = fs.String("count", "", "Count records of a collection (collection name)")
	f.Stat = fs.String("stat", "", "Compute a chart from a JSON/YAML params file (file path)")
	f.Export = fs.String("export", "", "Export records of a collection to CSV/XLSX (collection name)")
	f.Invalidate = fs.String("invalidate", "", "Drop cached charts of a collection (collection name)")

	// Request parameters
	f.Query = fs.String("query", "", "Request query string, e.g. 'filter[status]=paid&sort=-createdAt&page[size]=20'")

	// Options
	f.Config = fs.String("config", "config.yaml", "Configuration file path")
	f.Output = fs.String("output", "", "Output file path (default: stdout or auto-generated)")
	f.Format = fs.String("format", "csv", "Export format: csv, xlsx")
	f.Sheet = fs.String("sheet", "Sheet1", "Excel sheet name for XLSX export")
	f.Upload = fs.Bool("upload", false, "Upload exported file to S3 (export.s3_bucket)")

	// Config Creation
	f.CreateConfig = fs.String("create-config", "", "Create sample config file: postgres, mysql, mssql, sqlite")

	// Misc
	f.Version = fs.Bool("version", false, "Show version information")
	f.Help = fs.Bool("help", false, "Show help with examples")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// commandWasSpecified checks if any command was specified
func (f *Flags) commandWasSpecified() bool {
	return *f.List != "" ||
		*f.Count != "" ||
		*f.Stat != "" ||
		*f.Export != "" ||
		*f.Invalidate != ""
}
